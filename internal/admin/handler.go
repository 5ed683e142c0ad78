package admin

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/model"
	"github.com/reqvault/reqvault/internal/repository"
)

const (
	defaultLimit     = 50
	defaultOlderDays = 30
)

type Handler struct {
	repo   repository.CaptureRepository
	logger *zerolog.Logger
}

func NewHandler(repo repository.CaptureRepository, logger *zerolog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) ListRequests(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	requests, total, err := h.repo.ListRequests(c.UserContext(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list requests")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	items := make([]fiber.Map, 0, len(requests))
	for _, req := range requests {
		items = append(items, summarize(req))
	}

	return c.JSON(fiber.Map{
		"requests": items,
		"pagination": fiber.Map{
			"limit":   filter.Limit,
			"offset":  filter.Offset,
			"total":   total,
			"hasMore": int64(filter.Offset+len(requests)) < total,
		},
	})
}

func (h *Handler) GetRequest(c *fiber.Ctx) error {
	req, err := h.repo.GetRequest(c.UserContext(), c.Params("id"))
	if err != nil {
		h.logger.Error().Err(err).Str("id", c.Params("id")).Msg("Failed to fetch request")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if req == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "request not found"})
	}

	out := summarize(req)
	out["query"] = req.QueryParams
	out["headers"] = req.Headers
	if body := decodeBody(req); body != nil {
		out["body"] = body
	}
	return c.JSON(out)
}

func (h *Handler) ListRequestFiles(c *fiber.Ctx) error {
	id := c.Params("id")
	req, err := h.repo.GetRequest(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to fetch request")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if req == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "request not found"})
	}

	files, err := h.repo.ListFiles(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to list files")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if files == nil {
		files = []*model.UploadedFile{}
	}

	return c.JSON(fiber.Map{
		"requestId": id,
		"files":     files,
	})
}

func (h *Handler) DownloadFile(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	file, err := h.repo.GetFile(c.UserContext(), fileID)
	if err != nil {
		h.logger.Error().Err(err).Str("file_id", fileID).Msg("Failed to fetch file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if file == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}
	if _, err := os.Stat(file.DiskPath); err != nil {
		h.logger.Warn().Str("file_id", fileID).Str("disk_path", file.DiskPath).Msg("File row exists but disk artifact is missing")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}

	name := file.OriginalName
	if name == "" {
		name = file.ID
	}
	return c.Download(file.DiskPath, name)
}

func (h *Handler) DeleteRequest(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := h.repo.SoftDeleteRequest(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to soft-delete request")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "request not found"})
	}

	return c.JSON(fiber.Map{
		"message": "request deleted",
		"id":      id,
	})
}

func (h *Handler) DeleteOlderThan(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultOlderDays)
	if days < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must not be negative"})
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	count, err := h.repo.SoftDeleteOlderThan(c.UserContext(), cutoff)
	if err != nil {
		h.logger.Error().Err(err).Int("days", days).Msg("Failed to bulk soft-delete requests")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	h.logger.Info().Int("days", days).Int64("deleted", count).Msg("Bulk soft-delete completed")
	return c.JSON(fiber.Map{
		"message": "requests deleted",
		"deleted": count,
	})
}

func parseFilter(c *fiber.Ctx) (model.ListFilter, error) {
	filter := model.ListFilter{
		Limit:      c.QueryInt("limit", defaultLimit),
		Offset:     c.QueryInt("offset", 0),
		Method:     strings.ToUpper(c.Query("method")),
		PathPrefix: c.Query("pathPrefix"),
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}
	if hasFiles := c.Query("hasFiles"); hasFiles != "" {
		b, err := strconv.ParseBool(hasFiles)
		if err != nil {
			return filter, err
		}
		filter.HasFiles = &b
	}

	return filter, nil
}

func summarize(req *model.CapturedRequest) fiber.Map {
	return fiber.Map{
		"id":             req.ID,
		"timestamp":      req.Timestamp,
		"client_ip":      req.ClientIP,
		"method":         req.Method,
		"path":           req.Path,
		"content_type":   req.ContentType,
		"content_length": req.ContentLength,
		"encoding":       req.RawBodyEncoding,
		"truncated":      req.Truncated,
		"has_files":      req.HasFiles,
	}
}

// decodeBody renders the stored body for display: UTF-8 text directly,
// anything else as a base64 envelope.
func decodeBody(req *model.CapturedRequest) interface{} {
	if len(req.RawBody) == 0 {
		return nil
	}
	if req.RawBodyEncoding == model.EncodingUTF8 {
		return string(req.RawBody)
	}
	return fiber.Map{
		"base64":   string(req.RawBody),
		"encoding": req.RawBodyEncoding,
	}
}
