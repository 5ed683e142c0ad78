package oracle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/sijms/go-ora/v2"

	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository/migrations"
	"github.com/reqvault/reqvault/internal/repository/sqlfilter"
)

type OracleRepository struct {
	DB *sql.DB
}

func NewOracleRepository(connStr string) (*OracleRepository, error) {
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Oracle: %w", err)
	}

	return &OracleRepository{DB: db}, nil
}

const requestColumns = `id, timestamp, client_ip, method, path, query_params, headers,
		content_type, content_length, raw_body, raw_body_encoding, truncated, has_files, deleted_at`

func (r *OracleRepository) SaveCapture(ctx context.Context, req *model.CapturedRequest, files []*model.UploadedFile) error {
	queryParams, err := json.Marshal(req.QueryParams)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO captured_request (
			id, timestamp, client_ip, method, path, query_params, headers,
			content_type, content_length, raw_body, raw_body_encoding,
			truncated, has_files
		) VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13)`,
		req.ID, req.Timestamp, req.ClientIP, req.Method, req.Path,
		string(queryParams), string(headers), req.ContentType, req.ContentLength,
		req.RawBody, req.RawBodyEncoding, boolToNumber(req.Truncated), boolToNumber(req.HasFiles),
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO uploaded_file (
			id, request_id, field_name, original_name, mime_type, size_bytes, disk_path
		) VALUES (:1, :2, :3, :4, :5, :6, :7)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range files {
		_, err = stmt.ExecContext(ctx,
			f.ID, f.RequestID, f.FieldName, f.OriginalName, f.MimeType, f.SizeBytes, f.DiskPath,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OracleRepository) ListRequests(ctx context.Context, filter model.ListFilter) ([]*model.CapturedRequest, int64, error) {
	where, args := sqlfilter.Build(filter, sqlfilter.Colon)

	var total int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM captured_request WHERE "+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM captured_request WHERE %s ORDER BY timestamp DESC OFFSET :%d ROWS FETCH NEXT :%d ROWS ONLY",
		requestColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, filter.Offset, filter.Limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
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

func (r *OracleRepository) GetRequest(ctx context.Context, id string) (*model.CapturedRequest, error) {
	row := r.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM captured_request WHERE id = :1 AND deleted_at IS NULL", requestColumns),
		id,
	)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (r *OracleRepository) ListFiles(ctx context.Context, requestID string) ([]*model.UploadedFile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, request_id, field_name, original_name, mime_type, size_bytes, disk_path
		FROM uploaded_file WHERE request_id = :1 ORDER BY id`,
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

func (r *OracleRepository) GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := r.DB.QueryRowContext(ctx,
		`SELECT f.id, f.request_id, f.field_name, f.original_name, f.mime_type, f.size_bytes, f.disk_path
		FROM uploaded_file f
		JOIN captured_request r ON r.id = f.request_id
		WHERE f.id = :1 AND r.deleted_at IS NULL`,
		fileID,
	).Scan(&f.ID, &f.RequestID, &f.FieldName, &f.OriginalName, &f.MimeType, &f.SizeBytes, &f.DiskPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *OracleRepository) SoftDeleteRequest(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE captured_request SET deleted_at = SYSTIMESTAMP WHERE id = :1 AND deleted_at IS NULL",
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *OracleRepository) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE captured_request SET deleted_at = SYSTIMESTAMP WHERE timestamp < :1 AND deleted_at IS NULL",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *OracleRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *OracleRepository) ProbeWrite(ctx context.Context) error {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO captured_request (id, timestamp, method, path, truncated, has_files)
		VALUES (:1, SYSTIMESTAMP, 'PROBE', '/__readyz', 0, 0)`,
		id,
	)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM captured_request WHERE id = :1", id)
	return err
}

func (r *OracleRepository) Close() error {
	return r.DB.Close()
}

func (r *OracleRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Oracle migrations")

	_, err := r.DB.ExecContext(ctx, migrations.OracleSchema)
	if err != nil {
		log.Error().Err(err).Msg("Oracle migrations failed")
		return fmt.Errorf("migration error: %w", err)
	}

	log.Info().Msg("Oracle migrations completed")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*model.CapturedRequest, error) {
	var (
		req         model.CapturedRequest
		clientIP    sql.NullString
		queryParams sql.NullString
		headers     sql.NullString
		contentType sql.NullString
		contentLen  sql.NullInt64
		encoding    sql.NullString
		truncated   int
		hasFiles    int
		deletedAt   sql.NullTime
	)
	err := row.Scan(
		&req.ID, &req.Timestamp, &clientIP, &req.Method, &req.Path,
		&queryParams, &headers, &contentType, &contentLen,
		&req.RawBody, &encoding, &truncated, &hasFiles, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	req.ClientIP = clientIP.String
	req.ContentType = contentType.String
	req.ContentLength = contentLen.Int64
	req.RawBodyEncoding = encoding.String
	req.Truncated = truncated != 0
	req.HasFiles = hasFiles != 0
	if deletedAt.Valid {
		t := deletedAt.Time
		req.DeletedAt = &t
	}
	if queryParams.Valid && queryParams.String != "" {
		if err := json.Unmarshal([]byte(queryParams.String), &req.QueryParams); err != nil {
			return nil, err
		}
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &req.Headers); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func boolToNumber(b bool) int {
	if b {
		return 1
	}
	return 0
}
