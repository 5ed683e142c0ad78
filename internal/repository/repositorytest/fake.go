// Package repositorytest provides an in-memory CaptureRepository used by
// handler tests.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reqvault/reqvault/internal/model"
)

type Fake struct {
	mu       sync.Mutex
	requests map[string]*model.CapturedRequest
	files    map[string]*model.UploadedFile

	// Error overrides for failure-path tests.
	SaveErr  error
	PingErr  error
	ProbeErr error
}

func New() *Fake {
	return &Fake{
		requests: make(map[string]*model.CapturedRequest),
		files:    make(map[string]*model.UploadedFile),
	}
}

func (f *Fake) SaveCapture(_ context.Context, req *model.CapturedRequest, files []*model.UploadedFile) error {
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.requests[req.ID] = &cp
	for _, file := range files {
		fcp := *file
		f.files[file.ID] = &fcp
	}
	return nil
}

func (f *Fake) ListRequests(_ context.Context, filter model.ListFilter) ([]*model.CapturedRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*model.CapturedRequest
	for _, req := range f.requests {
		if req.DeletedAt != nil {
			continue
		}
		if filter.Method != "" && req.Method != filter.Method {
			continue
		}
		if filter.PathPrefix != "" && !strings.HasPrefix(req.Path, filter.PathPrefix) {
			continue
		}
		if filter.Since != nil && req.Timestamp.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && req.Timestamp.After(*filter.Until) {
			continue
		}
		if filter.HasFiles != nil && req.HasFiles != *filter.HasFiles {
			continue
		}
		matched = append(matched, req)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (f *Fake) GetRequest(_ context.Context, id string) (*model.CapturedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.DeletedAt != nil {
		return nil, nil
	}
	return req, nil
}

func (f *Fake) ListFiles(_ context.Context, requestID string) ([]*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var files []*model.UploadedFile
	for _, file := range f.files {
		if file.RequestID == requestID {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (f *Fake) GetFile(_ context.Context, fileID string) (*model.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return nil, nil
	}
	owner, ok := f.requests[file.RequestID]
	if !ok || owner.DeletedAt != nil {
		return nil, nil
	}
	return file, nil
}

func (f *Fake) SoftDeleteRequest(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	req.DeletedAt = &now
	return true, nil
}

func (f *Fake) SoftDeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for _, req := range f.requests {
		if req.DeletedAt == nil && req.Timestamp.Before(cutoff) {
			req.DeletedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *Fake) Ping(context.Context) error {
	return f.PingErr
}

func (f *Fake) ProbeWrite(context.Context) error {
	return f.ProbeErr
}

func (f *Fake) Migrate(context.Context) error { return nil }

func (f *Fake) Close() error { return nil }

// Request returns the stored row regardless of soft-delete state.
func (f *Fake) Request(id string) *model.CapturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

// Len reports the number of stored requests, soft-deleted included.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
