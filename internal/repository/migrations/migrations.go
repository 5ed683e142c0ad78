package migrations

import (
	"context"
)

type Migrator interface {
	Migrate(ctx context.Context) error
}

// PostgreSQL migrations
var PostgresSchema = `
CREATE TABLE IF NOT EXISTS captured_request (
    id UUID PRIMARY KEY,
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
    client_ip VARCHAR(45),
    method VARCHAR(10) NOT NULL,
    path TEXT NOT NULL,
    query_params JSONB,
    headers JSONB,
    content_type TEXT,
    content_length BIGINT,
    raw_body BYTEA,
    raw_body_encoding VARCHAR(8),
    truncated BOOLEAN NOT NULL DEFAULT FALSE,
    has_files BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_at TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS uploaded_file (
    id UUID PRIMARY KEY,
    request_id UUID NOT NULL REFERENCES captured_request(id) ON DELETE CASCADE,
    field_name TEXT,
    original_name TEXT,
    mime_type TEXT,
    size_bytes BIGINT NOT NULL,
    disk_path TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captured_request_ts_path ON captured_request(timestamp, path);
CREATE INDEX IF NOT EXISTS idx_captured_request_path_method_ts ON captured_request(path, method, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_uploaded_file_request ON uploaded_file(request_id);
`

// Oracle migrations
var OracleSchema = `
BEGIN
    EXECUTE IMMEDIATE 'CREATE TABLE captured_request (
        id VARCHAR2(36) PRIMARY KEY,
        timestamp TIMESTAMP WITH TIME ZONE DEFAULT SYSTIMESTAMP NOT NULL,
        client_ip VARCHAR2(45),
        method VARCHAR2(10) NOT NULL,
        path VARCHAR2(2048) NOT NULL,
        query_params CLOB,
        headers CLOB,
        content_type CLOB,
        content_length NUMBER,
        raw_body BLOB,
        raw_body_encoding VARCHAR2(8),
        truncated NUMBER(1) DEFAULT 0 NOT NULL,
        has_files NUMBER(1) DEFAULT 0 NOT NULL,
        deleted_at TIMESTAMP WITH TIME ZONE
    )';
    EXECUTE IMMEDIATE 'CREATE TABLE uploaded_file (
        id VARCHAR2(36) PRIMARY KEY,
        request_id VARCHAR2(36) NOT NULL,
        field_name CLOB,
        original_name CLOB,
        mime_type CLOB,
        size_bytes NUMBER NOT NULL,
        disk_path CLOB,
        CONSTRAINT fk_uploaded_file_request FOREIGN KEY (request_id)
            REFERENCES captured_request(id) ON DELETE CASCADE
    )';
    EXECUTE IMMEDIATE 'CREATE INDEX idx_captured_request_ts_path ON captured_request(timestamp, path)';
    EXECUTE IMMEDIATE 'CREATE INDEX idx_captured_request_path_method_ts ON captured_request(path, method, timestamp DESC)';
    EXECUTE IMMEDIATE 'CREATE INDEX idx_uploaded_file_request ON uploaded_file(request_id)';
EXCEPTION
    WHEN OTHERS THEN
        IF SQLCODE != -955 THEN
            RAISE;
        END IF;
END;
`
