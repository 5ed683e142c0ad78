package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository/migrations"
	"github.com/reqvault/reqvault/internal/repository/sqlfilter"
)

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.Connect(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresRepository{Pool: pool}, nil
}

const requestColumns = `id, timestamp, client_ip, method, path, query_params, headers,
		content_type, content_length, raw_body, raw_body_encoding, truncated, has_files, deleted_at`

func (r *PostgresRepository) SaveCapture(ctx context.Context, req *model.CapturedRequest, files []*model.UploadedFile) error {
	queryParams, err := json.Marshal(req.QueryParams)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return err
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO captured_request (
			id, timestamp, client_ip, method, path, query_params, headers,
			content_type, content_length, raw_body, raw_body_encoding,
			truncated, has_files
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		req.ID, req.Timestamp, req.ClientIP, req.Method, req.Path,
		queryParams, headers, req.ContentType, req.ContentLength,
		req.RawBody, nullIfEmpty(req.RawBodyEncoding), req.Truncated, req.HasFiles,
	)
	if err != nil {
		return err
	}

	for _, f := range files {
		_, err = tx.Exec(ctx,
			`INSERT INTO uploaded_file (
				id, request_id, field_name, original_name, mime_type, size_bytes, disk_path
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.ID, f.RequestID, f.FieldName, f.OriginalName, f.MimeType, f.SizeBytes, f.DiskPath,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListRequests(ctx context.Context, filter model.ListFilter) ([]*model.CapturedRequest, int64, error) {
	where, args := sqlfilter.Build(filter, sqlfilter.Dollar)

	var total int64
	err := r.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM captured_request WHERE "+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM captured_request WHERE %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		requestColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []*model.CapturedRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, req)
	}
	return list, total, rows.Err()
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (*model.CapturedRequest, error) {
	row := r.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM captured_request WHERE id = $1 AND deleted_at IS NULL", requestColumns),
		id,
	)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (r *PostgresRepository) ListFiles(ctx context.Context, requestID string) ([]*model.UploadedFile, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, request_id, field_name, original_name, mime_type, size_bytes, disk_path
		FROM uploaded_file WHERE request_id = $1 ORDER BY id`,
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*model.UploadedFile
	for rows.Next() {
		var f model.UploadedFile
		if err := rows.Scan(&f.ID, &f.RequestID, &f.FieldName, &f.OriginalName, &f.MimeType, &f.SizeBytes, &f.DiskPath); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func (r *PostgresRepository) GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := r.Pool.QueryRow(ctx,
		`SELECT f.id, f.request_id, f.field_name, f.original_name, f.mime_type, f.size_bytes, f.disk_path
		FROM uploaded_file f
		JOIN captured_request r ON r.id = f.request_id
		WHERE f.id = $1 AND r.deleted_at IS NULL`,
		fileID,
	).Scan(&f.ID, &f.RequestID, &f.FieldName, &f.OriginalName, &f.MimeType, &f.SizeBytes, &f.DiskPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *PostgresRepository) SoftDeleteRequest(ctx context.Context, id string) (bool, error) {
	tag, err := r.Pool.Exec(ctx,
		"UPDATE captured_request SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL",
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx,
		"UPDATE captured_request SET deleted_at = now() WHERE timestamp < $1 AND deleted_at IS NULL",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

// ProbeWrite inserts a throwaway row and removes it again, proving the
// database accepts writes.
func (r *PostgresRepository) ProbeWrite(ctx context.Context) error {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO captured_request (id, timestamp, method, path, truncated, has_files)
		VALUES ($1, now(), 'PROBE', '/__readyz', FALSE, FALSE)`,
		id,
	)
	if err != nil {
		return err
	}
	_, err = r.Pool.Exec(ctx, "DELETE FROM captured_request WHERE id = $1", id)
	return err
}

func (r *PostgresRepository) Close() error {
	r.Pool.Close()
	return nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting PostgreSQL migrations")

	_, err := r.Pool.Exec(ctx, migrations.PostgresSchema)
	if err != nil {
		log.Error().Err(err).Msg("PostgreSQL migrations failed")
		return fmt.Errorf("migration error: %w", err)
	}

	log.Info().Msg("PostgreSQL migrations completed")
	return nil
}

func scanRequest(row pgx.Row) (*model.CapturedRequest, error) {
	var (
		req         model.CapturedRequest
		clientIP    *string
		queryParams []byte
		headers     []byte
		contentType *string
		contentLen  *int64
		encoding    *string
	)
	err := row.Scan(
		&req.ID, &req.Timestamp, &clientIP, &req.Method, &req.Path,
		&queryParams, &headers, &contentType, &contentLen,
		&req.RawBody, &encoding, &req.Truncated, &req.HasFiles, &req.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if clientIP != nil {
		req.ClientIP = *clientIP
	}
	if contentType != nil {
		req.ContentType = *contentType
	}
	if contentLen != nil {
		req.ContentLength = *contentLen
	}
	if encoding != nil {
		req.RawBodyEncoding = *encoding
	}
	if len(queryParams) > 0 {
		if err := json.Unmarshal(queryParams, &req.QueryParams); err != nil {
			return nil, err
		}
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &req.Headers); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
