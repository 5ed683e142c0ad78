package capture

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/reqvault/reqvault/internal/model"
)

// NormalizedBody is the uniform storage representation of a request body.
type NormalizedBody struct {
	Bytes     []byte
	Encoding  string
	Truncated bool
}

// multipartSummary is the synthesized JSON stored in place of a multipart
// body; the file bytes themselves live on disk.
type multipartSummary struct {
	HasFiles  bool              `json:"hasFiles"`
	FileCount int               `json:"fileCount"`
	Fields    map[string]string `json:"fields"`
}

// NormalizeBody classifies a raw body by content type and returns what gets
// stored. multi must be the materializer output when the content type is
// multipart/form-data, nil otherwise.
//
// Truncation keeps the byte-for-byte prefix up to maxBytes. For text and JSON
// bodies this can cut a UTF-8 sequence or a JSON token in half; the stored
// value is lossy on purpose and the truncated flag records that.
func NormalizeBody(contentType string, body []byte, maxBytes int64, multi *MultipartResult) (NormalizedBody, error) {
	switch {
	case strings.Contains(contentType, "multipart/form-data"):
		if multi == nil {
			multi = &MultipartResult{}
		}
		summary := multipartSummary{
			HasFiles:  len(multi.Files) > 0,
			FileCount: len(multi.Files),
			Fields:    multi.Fields,
		}
		if summary.Fields == nil {
			summary.Fields = map[string]string{}
		}
		b, err := json.Marshal(summary)
		if err != nil {
			return NormalizedBody{}, err
		}
		return NormalizedBody{Bytes: b, Encoding: model.EncodingUTF8}, nil

	case len(body) == 0:
		return NormalizedBody{}, nil

	case strings.Contains(contentType, "application/json"),
		strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "application/xml"),
		strings.Contains(contentType, "application/x-www-form-urlencoded"):
		capped, truncated := truncate(body, maxBytes)
		return NormalizedBody{Bytes: capped, Encoding: model.EncodingUTF8, Truncated: truncated}, nil

	default:
		capped, truncated := truncate(body, maxBytes)
		encoded := []byte(base64.StdEncoding.EncodeToString(capped))
		return NormalizedBody{Bytes: encoded, Encoding: model.EncodingBase64, Truncated: truncated}, nil
	}
}

func truncate(b []byte, maxBytes int64) ([]byte, bool) {
	if int64(len(b)) <= maxBytes {
		return b, false
	}
	return b[:maxBytes], true
}
