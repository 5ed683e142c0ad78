package sqlfilter

import (
	"testing"
	"time"

	"github.com/reqvault/reqvault/internal/model"
)

func TestBuild_NoFilters(t *testing.T) {
	where, args := Build(model.ListFilter{}, Dollar)
	if where != "deleted_at IS NULL" {
		t.Fatalf("got %q", where)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestBuild_AllFilters(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	hasFiles := true
	filter := model.ListFilter{
		Method:     "POST",
		PathPrefix: "/api",
		Since:      &since,
		Until:      &until,
		HasFiles:   &hasFiles,
	}

	where, args := Build(filter, Dollar)
	want := "deleted_at IS NULL AND method = $1 AND path LIKE $2 AND timestamp >= $3 AND timestamp <= $4 AND has_files = $5"
	if where != want {
		t.Fatalf("got %q, want %q", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[1] != "/api%" {
		t.Fatalf("expected prefix arg with wildcard, got %v", args[1])
	}
}

func TestBuild_ColonStyle(t *testing.T) {
	hasFiles := false
	where, args := Build(model.ListFilter{Method: "GET", HasFiles: &hasFiles}, Colon)
	want := "deleted_at IS NULL AND method = :1 AND has_files = :2"
	if where != want {
		t.Fatalf("got %q", where)
	}
	// Booleans become 0/1 for Oracle.
	if args[1] != 0 {
		t.Fatalf("expected 0, got %v", args[1])
	}
}
