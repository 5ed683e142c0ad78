package capture

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/config"
	"github.com/reqvault/reqvault/internal/metrics"
	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository"
)

type Handler struct {
	cfg     *config.CaptureConfig
	logger  *zerolog.Logger
	repo    repository.CaptureRepository
	metrics *metrics.Collector
	deny    []string
}

func NewHandler(cfg *config.CaptureConfig, logger *zerolog.Logger, repo repository.CaptureRepository, collector *metrics.Collector) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		metrics: collector,
		deny:    cfg.DenyList(),
	}
}

// Handle captures any inbound request. The request id is generated before
// anything can fail, so the 500 path can still hand it to the client for log
// correlation even though nothing was persisted.
func (h *Handler) Handle(c *fiber.Ctx) error {
	h.metrics.IncActiveRequests()
	defer h.metrics.DecActiveRequests()

	start := time.Now()
	requestID := uuid.Must(uuid.NewV7()).String()

	if err := h.capture(c, requestID, start); err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Dur("elapsed", time.Since(start)).
			Msg("Capture failed")
		h.metrics.IncCaptureError()
		h.metrics.IncResponse("5xx")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":     "error",
			"request_id": requestID,
			"error":      "Internal server error",
		})
	}

	elapsed := time.Since(start)
	h.logger.Info().
		Str("request_id", requestID).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Dur("elapsed", elapsed).
		Msg("Captured request")

	h.metrics.IncCaptured(c.Method())
	h.metrics.IncResponse("2xx")
	h.metrics.AddBytesIn(len(c.Body()))
	h.metrics.ObserveCaptureDuration(elapsed)

	return c.JSON(fiber.Map{
		"status":     "ok",
		"request_id": requestID,
	})
}

func (h *Handler) capture(c *fiber.Ctx, requestID string, receivedAt time.Time) error {
	body := c.Body()
	contentType := c.Get(fiber.HeaderContentType)

	declaredLen := int64(c.Request().Header.ContentLength())
	if declaredLen > h.cfg.MaxBodyBytes {
		h.logger.Warn().
			Str("request_id", requestID).
			Int64("content_length", declaredLen).
			Int64("max_body_bytes", h.cfg.MaxBodyBytes).
			Msg("Declared content length exceeds stored body cap, body will be truncated")
	}

	var (
		multi *MultipartResult
		files []*model.UploadedFile
	)
	if strings.Contains(contentType, "multipart/form-data") {
		mr, err := multipartReader(contentType, body)
		if err != nil {
			return err
		}
		multi, err = Materialize(mr, requestID, h.cfg.UploadDir)
		if err != nil {
			return err
		}
		files = multi.Files
	}

	normalized, err := NormalizeBody(contentType, body, h.cfg.MaxBodyBytes, multi)
	if err != nil {
		return err
	}

	req := &model.CapturedRequest{
		ID:              requestID,
		Timestamp:       receivedAt.UTC(),
		ClientIP:        c.IP(),
		Method:          c.Method(),
		Path:            c.Path(),
		QueryParams:     c.Queries(),
		Headers:         RedactHeaders(flattenHeaders(c.GetReqHeaders()), h.deny),
		ContentType:     contentType,
		ContentLength:   declaredLen,
		RawBody:         normalized.Bytes,
		RawBodyEncoding: normalized.Encoding,
		Truncated:       normalized.Truncated,
		HasFiles:        len(files) > 0,
	}

	if err := h.repo.SaveCapture(c.UserContext(), req, files); err != nil {
		return fmt.Errorf("save capture: %w", err)
	}

	h.metrics.AddFilesStored(len(files))
	return nil
}

func multipartReader(contentType string, body []byte) (*multipart.Reader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse multipart content type: %w", err)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, fmt.Errorf("multipart content type without boundary")
	}
	return multipart.NewReader(bytes.NewReader(body), boundary), nil
}

// flattenHeaders keeps the first value per header key, matching what gets
// persisted.
func flattenHeaders(headers map[string][]string) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}
