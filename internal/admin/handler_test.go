package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository/repositorytest"
)

const testToken = "test-token"

func newTestApp(repo *repositorytest.Fake) *fiber.App {
	lg := zerolog.Nop()
	h := NewHandler(repo, &lg)

	app := fiber.New()
	grp := app.Group("/admin", AuthMiddleware(testToken))
	grp.Get("/requests", h.ListRequests)
	grp.Get("/requests/:id", h.GetRequest)
	grp.Get("/requests/:id/files", h.ListRequestFiles)
	grp.Get("/files/:fileId", h.DownloadFile)
	grp.Delete("/requests/:id", h.DeleteRequest)
	grp.Delete("/older-than", h.DeleteOlderThan)
	return app
}

func adminRequest(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("unmarshal %q: %v", body, err)
	}
}

func seedRequest(t *testing.T, repo *repositorytest.Fake, req *model.CapturedRequest, files ...*model.UploadedFile) {
	t.Helper()
	if err := repo.SaveCapture(context.Background(), req, files); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	app := newTestApp(repositorytest.New())

	req := httptest.NewRequest(http.MethodGet, "/admin/requests", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing token: expected 403, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/requests", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bad token: expected 403, got %d", resp.StatusCode)
	}

	resp = adminRequest(t, app, http.MethodGet, "/admin/requests")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", resp.StatusCode)
	}
}

type listResponse struct {
	Requests   []map[string]interface{} `json:"requests"`
	Pagination struct {
		Limit   int   `json:"limit"`
		Offset  int   `json:"offset"`
		Total   int64 `json:"total"`
		HasMore bool  `json:"hasMore"`
	} `json:"pagination"`
}

func TestListRequests_FiltersAndPagination(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(repo)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedRequest(t, repo, &model.CapturedRequest{
			ID:        fmt.Sprintf("req-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Method:    "POST",
			Path:      "/api/items",
		})
	}
	seedRequest(t, repo, &model.CapturedRequest{
		ID:        "req-get",
		Timestamp: base,
		Method:    "GET",
		Path:      "/other",
		HasFiles:  true,
	})

	var out listResponse
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests?limit=2&offset=0"), &out)
	if out.Pagination.Total != 6 || len(out.Requests) != 2 || !out.Pagination.HasMore {
		t.Fatalf("unexpected page: %+v", out.Pagination)
	}
	// Ordering is timestamp descending.
	if out.Requests[0]["id"] != "req-4" {
		t.Fatalf("expected newest first, got %v", out.Requests[0]["id"])
	}

	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests?method=get"), &out)
	if out.Pagination.Total != 1 || out.Requests[0]["id"] != "req-get" {
		t.Fatalf("method filter failed: %+v", out)
	}

	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests?pathPrefix=/api"), &out)
	if out.Pagination.Total != 5 {
		t.Fatalf("pathPrefix filter failed: %+v", out.Pagination)
	}

	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests?hasFiles=true"), &out)
	if out.Pagination.Total != 1 || out.Requests[0]["id"] != "req-get" {
		t.Fatalf("hasFiles filter failed: %+v", out)
	}

	since := base.Add(3 * time.Minute).Format(time.RFC3339)
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests?since="+since), &out)
	if out.Pagination.Total != 2 {
		t.Fatalf("since filter failed: %+v", out.Pagination)
	}
}

func TestGetRequest_DecodesBody(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(repo)

	seedRequest(t, repo, &model.CapturedRequest{
		ID:              "req-utf8",
		Timestamp:       time.Now().UTC(),
		Method:          "POST",
		Path:            "/anything",
		QueryParams:     map[string]string{"x": "1"},
		RawBody:         []byte(`{"a":1}`),
		RawBodyEncoding: model.EncodingUTF8,
	})
	seedRequest(t, repo, &model.CapturedRequest{
		ID:              "req-bin",
		Timestamp:       time.Now().UTC(),
		Method:          "POST",
		Path:            "/blob",
		RawBody:         []byte("AAEC"),
		RawBodyEncoding: model.EncodingBase64,
	})

	var utf8Out map[string]interface{}
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests/req-utf8"), &utf8Out)
	if utf8Out["body"] != `{"a":1}` {
		t.Fatalf("expected decoded utf8 body, got %v", utf8Out["body"])
	}
	query, ok := utf8Out["query"].(map[string]interface{})
	if !ok || query["x"] != "1" {
		t.Fatalf("expected query x=1, got %v", utf8Out["query"])
	}

	var binOut map[string]interface{}
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests/req-bin"), &binOut)
	envelope, ok := binOut["body"].(map[string]interface{})
	if !ok || envelope["base64"] != "AAEC" || envelope["encoding"] != "base64" {
		t.Fatalf("expected base64 envelope, got %v", binOut["body"])
	}

	resp := adminRequest(t, app, http.MethodGet, "/admin/requests/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSoftDelete_HidesEverywhere(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(repo)

	dir := t.TempDir()
	diskPath := filepath.Join(dir, "file-1_data.bin")
	if err := os.WriteFile(diskPath, []byte{1, 2, 3, 4, 5, 6}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	seedRequest(t, repo,
		&model.CapturedRequest{ID: "req-1", Timestamp: time.Now().UTC(), Method: "POST", Path: "/u", HasFiles: true},
		&model.UploadedFile{ID: "file-1", RequestID: "req-1", FieldName: "f", OriginalName: "data.bin", SizeBytes: 6, DiskPath: diskPath},
	)

	// Download works before deletion and returns the exact bytes.
	resp := adminRequest(t, app, http.MethodGet, "/admin/files/file-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(data) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(data))
	}

	var delOut map[string]interface{}
	decodeJSON(t, adminRequest(t, app, http.MethodDelete, "/admin/requests/req-1"), &delOut)
	if delOut["id"] != "req-1" {
		t.Fatalf("unexpected delete response: %v", delOut)
	}

	// Row and disk artifact still exist physically.
	if repo.Request("req-1") == nil {
		t.Fatal("soft delete must keep the row")
	}
	if _, err := os.Stat(diskPath); err != nil {
		t.Fatal("soft delete must keep the disk file")
	}

	// But every read surface reports 404 / excludes it.
	for _, target := range []string{
		"/admin/requests/req-1",
		"/admin/requests/req-1/files",
		"/admin/files/file-1",
	} {
		resp := adminRequest(t, app, http.MethodGet, target)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, resp.StatusCode)
		}
	}
	var out listResponse
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests"), &out)
	if out.Pagination.Total != 0 {
		t.Fatalf("soft-deleted request still listed: %+v", out.Pagination)
	}

	// Second delete finds nothing.
	resp = adminRequest(t, app, http.MethodDelete, "/admin/requests/req-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestDownloadFile_MissingOnDisk(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(repo)

	seedRequest(t, repo,
		&model.CapturedRequest{ID: "req-1", Timestamp: time.Now().UTC(), Method: "POST", Path: "/u", HasFiles: true},
		&model.UploadedFile{ID: "file-1", RequestID: "req-1", DiskPath: "/does/not/exist"},
	)

	resp := adminRequest(t, app, http.MethodGet, "/admin/files/file-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteOlderThan_IdempotentCutoff(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(repo)

	now := time.Now().UTC()
	seedRequest(t, repo, &model.CapturedRequest{ID: "old-1", Timestamp: now.AddDate(0, 0, -40), Method: "GET", Path: "/a"})
	seedRequest(t, repo, &model.CapturedRequest{ID: "old-2", Timestamp: now.AddDate(0, 0, -31), Method: "GET", Path: "/b"})
	seedRequest(t, repo, &model.CapturedRequest{ID: "new-1", Timestamp: now.AddDate(0, 0, -5), Method: "GET", Path: "/c"})

	var out map[string]interface{}
	decodeJSON(t, adminRequest(t, app, http.MethodDelete, "/admin/older-than"), &out)
	if out["deleted"].(float64) != 2 {
		t.Fatalf("expected 2 deleted, got %v", out["deleted"])
	}

	decodeJSON(t, adminRequest(t, app, http.MethodDelete, "/admin/older-than"), &out)
	if out["deleted"].(float64) != 0 {
		t.Fatalf("second run must delete 0, got %v", out["deleted"])
	}

	var list listResponse
	decodeJSON(t, adminRequest(t, app, http.MethodGet, "/admin/requests"), &list)
	if list.Pagination.Total != 1 || list.Requests[0]["id"] != "new-1" {
		t.Fatalf("expected only new-1 left, got %+v", list)
	}

	decodeJSON(t, adminRequest(t, app, http.MethodDelete, "/admin/older-than?days=1"), &out)
	if out["deleted"].(float64) != 1 {
		t.Fatalf("expected 1 deleted with days=1, got %v", out["deleted"])
	}
}
