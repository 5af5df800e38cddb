package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"mediadl/config"
	"mediadl/extractor"
	"mediadl/history"
	"mediadl/notify"
	"mediadl/task"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager  *task.Manager
	settings *config.Settings
	history  *history.Store
	board    *Board
	logger   *slog.Logger
}

func NewHandler(manager *task.Manager, settings *config.Settings, store *history.Store, board *Board) *Handler {
	return &Handler{
		manager:  manager,
		settings: settings,
		history:  store,
		board:    board,
		logger:   slog.Default(),
	}
}

type DownloadRequest struct {
	URL       string             `json:"url" binding:"required"`
	MediaType string             `json:"media_type"`
	Format    string             `json:"format"`
	Cookies   []extractor.Cookie `json:"cookies"`
}

type URLRequest struct {
	URL     string             `json:"url" binding:"required"`
	Cookies []extractor.Cookie `json:"cookies"`
}

type MonitorRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// handleDownload accepts a download and returns its job id.
func (h *Handler) handleDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.manager.Submit(task.Request{
		URL:       req.URL,
		MediaType: extractor.MediaType(req.MediaType),
		Format:    req.Format,
		Cookies:   req.Cookies,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"id": id, "message": "Download started"})
	case errors.Is(err, task.ErrEmptyURL), errors.Is(err, task.ErrInvalidMediaType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrIntakeDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to submit download", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start download", "details": err.Error()})
	}
}

// handleSetMonitorStatus toggles whether new downloads are accepted.
func (h *Handler) handleSetMonitorStatus(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.Set(config.KeyIntakeEnabled, *req.Enabled); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": h.manager.IntakeEnabled()})
}

// handleAnalyzeURL reports what the service knows about a URL before
// downloading it.
func (h *Handler) handleAnalyzeURL(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, extractor.Analyze(req.URL))
}

// handleGetFormats lists the formats the extractor offers for a URL.
func (h *Handler) handleGetFormats(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	formats, err := h.manager.ListFormats(c.Request.Context(), req.URL, req.Cookies)
	var fe *task.FormatsError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"formats": formats, "platform": extractor.DetectPlatform(req.URL)})
	case errors.Is(err, task.ErrEmptyURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &fe):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       fe.Message,
			"details":     fe.Detail,
			"platform":    fe.Platform,
			"suggestions": fe.Suggestions,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// handleListJobs lists active jobs.
func (h *Handler) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Active())
}

// handleCancelJob requests cancellation of an active job.
func (h *Handler) handleCancelJob(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.Cancel(req.URL); err != nil {
		if errors.Is(err, task.ErrNotActive) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Cancellation requested"})
}

// handleEvents streams job events as server-sent events, starting with the
// latest known event of every job.
func (h *Handler) handleEvents(c *gin.Context) {
	events, unsubscribe := h.board.Subscribe()
	defer unsubscribe()

	for _, ev := range h.board.Latest() {
		c.SSEvent(string(ev.Kind()), ev)
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind()), ev)
			return true
		}
	})
}

// handleListHistory lists finished downloads, newest first.
func (h *Handler) handleListHistory(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	kind, ok := historyKind(c.Query("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}

	entries, err := h.history.List(kind, limit)
	if err != nil {
		h.logger.Error("Failed to list history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// handleClearHistory removes finished downloads from the history.
func (h *Handler) handleClearHistory(c *gin.Context) {
	kind, ok := historyKind(c.Query("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}
	n, err := h.history.Clear(kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func historyKind(raw string) (notify.Kind, bool) {
	kind := notify.Kind(raw)
	if kind == "" || kind.IsTerminal() {
		return kind, true
	}
	return "", false
}

// handleGetSettings returns the runtime settings.
func (h *Handler) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.All())
}

// handlePutSettings updates some runtime settings. Keys are applied in
// order and the first invalid one stops the update.
func (h *Handler) handlePutSettings(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := h.settings.Set(k, req[k]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, h.settings.All())
}
