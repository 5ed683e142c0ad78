package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/config"
	"github.com/reqvault/reqvault/internal/metrics"
	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository/repositorytest"
)

func newTestApp(t *testing.T, repo *repositorytest.Fake, cfg *config.CaptureConfig) *fiber.App {
	t.Helper()
	if cfg == nil {
		cfg = &config.CaptureConfig{
			MaxBodyBytes:   10 * 1024 * 1024,
			MaxUploadBytes: 100 * 1024 * 1024,
			UploadDir:      t.TempDir(),
			RedactedFields: "authorization,cookie,x-api-key",
		}
	}
	lg := zerolog.Nop()
	collector := metrics.NewCollector(prometheus.NewRegistry(), "test", "test")
	app := fiber.New()
	app.All("/*", NewHandler(cfg, &lg, repo, collector).Handle)
	return app
}

type captureResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, captureResponse) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	resp.Body.Close()
	var out captureResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", body, err)
	}
	return resp, out
}

func TestHandle_CapturesJSONRequest(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(t, repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/anything?x=1", bytes.NewReader([]byte(`{"a":1}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer topsecret")

	resp, out := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Status != "ok" || out.RequestID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}

	stored := repo.Request(out.RequestID)
	if stored == nil {
		t.Fatal("request not persisted")
	}
	if stored.Method != "POST" || stored.Path != "/anything" {
		t.Fatalf("unexpected metadata: %+v", stored)
	}
	if stored.QueryParams["x"] != "1" {
		t.Fatalf("expected query x=1, got %v", stored.QueryParams)
	}
	if string(stored.RawBody) != `{"a":1}` || stored.RawBodyEncoding != model.EncodingUTF8 {
		t.Fatalf("unexpected body: %q (%s)", stored.RawBody, stored.RawBodyEncoding)
	}
	if stored.Truncated || stored.HasFiles {
		t.Fatalf("unexpected flags: %+v", stored)
	}
	if stored.Headers["Authorization"] != RedactedValue {
		t.Fatalf("authorization header not redacted: %q", stored.Headers["Authorization"])
	}
}

func TestHandle_EmptyBody(t *testing.T) {
	repo := repositorytest.New()
	app := newTestApp(t, repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	resp, out := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stored := repo.Request(out.RequestID)
	if len(stored.RawBody) != 0 || stored.RawBodyEncoding != "" {
		t.Fatalf("expected absent body, got %q (%s)", stored.RawBody, stored.RawBodyEncoding)
	}
}

func TestHandle_BinaryBodyTruncatedAtCap(t *testing.T) {
	repo := repositorytest.New()
	cfg := &config.CaptureConfig{
		MaxBodyBytes:   1024,
		MaxUploadBytes: 10 * 1024 * 1024,
		UploadDir:      t.TempDir(),
		RedactedFields: "authorization",
	}
	app := newTestApp(t, repo, cfg)

	payload := bytes.Repeat([]byte{0x7f}, 4096)
	req := httptest.NewRequest(http.MethodPost, "/blob", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, out := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stored := repo.Request(out.RequestID)
	if !stored.Truncated || stored.RawBodyEncoding != model.EncodingBase64 {
		t.Fatalf("unexpected flags: truncated=%v encoding=%s", stored.Truncated, stored.RawBodyEncoding)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(stored.RawBody))
	if err != nil {
		t.Fatalf("decode stored body: %v", err)
	}
	if len(decoded) != 1024 {
		t.Fatalf("expected decoded length 1024, got %d", len(decoded))
	}
}

func TestHandle_MultipartStoresFiles(t *testing.T) {
	repo := repositorytest.New()
	uploadDir := t.TempDir()
	cfg := &config.CaptureConfig{
		MaxBodyBytes:   10 * 1024 * 1024,
		MaxUploadBytes: 100 * 1024 * 1024,
		UploadDir:      uploadDir,
		RedactedFields: "authorization",
	}
	app := newTestApp(t, repo, cfg)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, _ := w.CreateFormFile("f", "data.bin")
	fw.Write([]byte{1, 2, 3, 4, 5, 6})
	w.WriteField("note", "hi")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, out := doRequest(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stored := repo.Request(out.RequestID)
	if !stored.HasFiles {
		t.Fatal("expected has_files")
	}
	if stored.RawBodyEncoding != model.EncodingUTF8 {
		t.Fatalf("expected utf8 summary, got %s", stored.RawBodyEncoding)
	}
	var summary struct {
		HasFiles  bool              `json:"hasFiles"`
		FileCount int               `json:"fileCount"`
		Fields    map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(stored.RawBody, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.FileCount != 1 || summary.Fields["note"] != "hi" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	files, _ := repo.ListFiles(nil, out.RequestID)
	if len(files) != 1 {
		t.Fatalf("expected 1 file row, got %d", len(files))
	}
	if files[0].SizeBytes != 6 {
		t.Fatalf("expected size 6, got %d", files[0].SizeBytes)
	}
	if _, err := os.Stat(files[0].DiskPath); err != nil {
		t.Fatalf("disk artifact missing: %v", err)
	}
}

func TestHandle_SaveFailureStillReturnsRequestID(t *testing.T) {
	repo := repositorytest.New()
	repo.SaveErr = errors.New("insert failed")
	app := newTestApp(t, repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, out := doRequest(t, app, req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if out.Status != "error" || out.RequestID == "" {
		t.Fatalf("failure response must carry a request id: %+v", out)
	}
	if out.Error != "Internal server error" {
		t.Fatalf("unexpected error message: %q", out.Error)
	}
	if repo.Len() != 0 {
		t.Fatal("nothing should be persisted on failure")
	}
}
