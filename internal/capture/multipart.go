package capture

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/reqvault/reqvault/internal/model"
)

// MultipartResult is what Materialize extracted from one multipart stream:
// descriptors for the file parts written to disk, in arrival order, and the
// plain fields (last occurrence wins on duplicate names).
type MultipartResult struct {
	Files  []*model.UploadedFile
	Fields map[string]string
}

// Materialize drains the multipart stream in a single sequential pass. File
// parts stream to <uploadRoot>/<requestID>/ via io.Copy, each under a name
// prefixed with a fresh file id, so duplicate declared filenames never
// collide. Any disk error aborts the whole request; files already written
// stay on disk (see the orphan note in DESIGN.md).
func Materialize(mr *multipart.Reader, requestID, uploadRoot string) (*MultipartResult, error) {
	dir := filepath.Join(uploadRoot, requestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	result := &MultipartResult{Fields: map[string]string{}}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart part: %w", err)
		}

		if isFilePart(part) {
			file, err := writeFilePart(part, requestID, dir)
			part.Close()
			if err != nil {
				return nil, err
			}
			result.Files = append(result.Files, file)
			continue
		}

		value, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("read field %q: %w", part.FormName(), err)
		}
		result.Fields[part.FormName()] = string(value)
	}

	return result, nil
}

// isFilePart reports whether the part declared a filename parameter, even an
// empty one. Parts without it are plain form fields.
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func writeFilePart(part *multipart.Part, requestID, dir string) (*model.UploadedFile, error) {
	fileID := uuid.Must(uuid.NewV7()).String()

	name := diskName(fileID, part.FileName())
	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, part)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload file %q: %w", name, err)
	}

	return &model.UploadedFile{
		ID:           fileID,
		RequestID:    requestID,
		FieldName:    part.FormName(),
		OriginalName: part.FileName(),
		MimeType:     part.Header.Get("Content-Type"),
		SizeBytes:    written,
		DiskPath:     dst,
	}, nil
}

// diskName derives the on-disk filename: the declared name, sanitized and
// prefixed with the generated file id for uniqueness, or the id alone when no
// filename was declared.
func diskName(fileID, declared string) string {
	base := filepath.Base(strings.TrimSpace(declared))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fileID
	}
	return fileID + "_" + base
}
