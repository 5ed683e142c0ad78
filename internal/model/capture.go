package model

import (
	"time"
)

// Body encoding tags stored alongside the raw body column.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// CapturedRequest is one recorded inbound HTTP request. The raw body is kept
// as stored (UTF-8 text or base64 text depending on RawBodyEncoding); decoding
// for display happens at the admin layer.
type CapturedRequest struct {
	ID              string            `json:"id" db:"id" gorm:"primaryKey;type:varchar(36)"`
	Timestamp       time.Time         `json:"timestamp" db:"timestamp" gorm:"index:idx_captured_request_ts_path,priority:1;index:idx_captured_request_path_method_ts,priority:3,sort:desc"`
	ClientIP        string            `json:"client_ip,omitempty" db:"client_ip"`
	Method          string            `json:"method" db:"method" gorm:"index:idx_captured_request_path_method_ts,priority:2"`
	Path            string            `json:"path" db:"path" gorm:"index:idx_captured_request_ts_path,priority:2;index:idx_captured_request_path_method_ts,priority:1"`
	QueryParams     map[string]string `json:"query_params" db:"query_params" gorm:"serializer:json"`
	Headers         map[string]string `json:"headers" db:"headers" gorm:"serializer:json"`
	ContentType     string            `json:"content_type,omitempty" db:"content_type"`
	ContentLength   int64             `json:"content_length,omitempty" db:"content_length"`
	RawBody         []byte            `json:"-" db:"raw_body"`
	RawBodyEncoding string            `json:"raw_body_encoding,omitempty" db:"raw_body_encoding"`
	Truncated       bool              `json:"truncated" db:"truncated"`
	HasFiles        bool              `json:"has_files" db:"has_files"`
	DeletedAt       *time.Time        `json:"deleted_at,omitempty" db:"deleted_at"`

	Files []UploadedFile `json:"-" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (CapturedRequest) TableName() string {
	return "captured_request"
}

// UploadedFile is one file part of a multipart capture. The bytes live on
// disk under <upload_dir>/<request_id>/; DiskPath is the only reference.
type UploadedFile struct {
	ID           string `json:"id" db:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID    string `json:"request_id" db:"request_id" gorm:"index;type:varchar(36)"`
	FieldName    string `json:"field_name" db:"field_name"`
	OriginalName string `json:"original_name" db:"original_name"`
	MimeType     string `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes    int64  `json:"size_bytes" db:"size_bytes"`
	DiskPath     string `json:"disk_path" db:"disk_path"`
}

func (UploadedFile) TableName() string {
	return "uploaded_file"
}
