package repository

import (
	"context"
	"time"

	"github.com/reqvault/reqvault/internal/model"
)

// CaptureRepository is the storage contract shared by all backends. Reads
// never return soft-deleted rows; SaveCapture writes the request row and its
// file rows in one transaction.
type CaptureRepository interface {
	SaveCapture(ctx context.Context, req *model.CapturedRequest, files []*model.UploadedFile) error
	ListRequests(ctx context.Context, filter model.ListFilter) ([]*model.CapturedRequest, int64, error)
	GetRequest(ctx context.Context, id string) (*model.CapturedRequest, error)
	ListFiles(ctx context.Context, requestID string) ([]*model.UploadedFile, error)
	GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error)
	SoftDeleteRequest(ctx context.Context, id string) (bool, error)
	SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	ProbeWrite(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
