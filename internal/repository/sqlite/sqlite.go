package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/reqvault/reqvault/internal/model"
)

// SQLiteRepository is the embedded backend, mainly for single-node and dev
// deployments. Uses the pure-Go driver, so no cgo.
type SQLiteRepository struct {
	DB *gorm.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	return &SQLiteRepository{DB: db}, nil
}

func (r *SQLiteRepository) SaveCapture(ctx context.Context, req *model.CapturedRequest, files []*model.UploadedFile) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(req).Error; err != nil {
			return err
		}
		for _, f := range files {
			if err := tx.Create(f).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListRequests(ctx context.Context, filter model.ListFilter) ([]*model.CapturedRequest, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.CapturedRequest{}).Where("deleted_at IS NULL")
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.PathPrefix != "" {
		q = q.Where("path LIKE ?", filter.PathPrefix+"%")
	}
	if filter.Since != nil {
		q = q.Where("timestamp >= ?", *filter.Since)
	}
	if filter.Until != nil {
		q = q.Where("timestamp <= ?", *filter.Until)
	}
	if filter.HasFiles != nil {
		q = q.Where("has_files = ?", *filter.HasFiles)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*model.CapturedRequest
	err := q.Order("timestamp DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *SQLiteRepository) GetRequest(ctx context.Context, id string) (*model.CapturedRequest, error) {
	var req model.CapturedRequest
	err := r.DB.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *SQLiteRepository) ListFiles(ctx context.Context, requestID string) ([]*model.UploadedFile, error) {
	var files []*model.UploadedFile
	err := r.DB.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("id").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *SQLiteRepository) GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := r.DB.WithContext(ctx).Model(&model.UploadedFile{}).
		Joins("JOIN captured_request ON captured_request.id = uploaded_file.request_id").
		Where("uploaded_file.id = ? AND captured_request.deleted_at IS NULL", fileID).
		First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *SQLiteRepository) SoftDeleteRequest(ctx context.Context, id string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.CapturedRequest{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SQLiteRepository) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.CapturedRequest{}).
		Where("timestamp < ? AND deleted_at IS NULL", cutoff).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	db, err := r.DB.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (r *SQLiteRepository) ProbeWrite(ctx context.Context) error {
	probe := &model.CapturedRequest{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: time.Now().UTC(),
		Method:    "PROBE",
		Path:      "/__readyz",
	}
	if err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(probe).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Delete(&model.CapturedRequest{}, "id = ?", probe.ID).Error
}

func (r *SQLiteRepository) Close() error {
	db, err := r.DB.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting SQLite migrations")

	err := r.DB.WithContext(ctx).AutoMigrate(&model.CapturedRequest{}, &model.UploadedFile{})
	if err != nil {
		log.Error().Err(err).Msg("SQLite migrations failed")
		return fmt.Errorf("migration error: %w", err)
	}

	log.Info().Msg("SQLite migrations completed")
	return nil
}
