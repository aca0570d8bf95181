// Package http wires the task lifecycle API, the analyze endpoint and the
// progress stream publisher to gin routes.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mediagrab/internal/domain"
	"mediagrab/internal/engine"
	"mediagrab/internal/i18n"
	"mediagrab/internal/naming"
	"mediagrab/internal/proxy"
	"mediagrab/internal/registry"
	"mediagrab/internal/repository"
	"mediagrab/internal/worker"
)

// Handler wires HTTP routes to the task core.
type Handler struct {
	registry *registry.Registry
	worker   *worker.Worker
	engine   engine.Engine
	cache    repository.MediaCacheRepository
	proxy    *proxy.Selector
	cacheTTL time.Duration
	poll     time.Duration
	logger   *logrus.Logger
}

type Config struct {
	Registry *registry.Registry
	Worker   *worker.Worker
	Engine   engine.Engine
	Cache    repository.MediaCacheRepository
	Proxy    *proxy.Selector
	CacheTTL time.Duration
	// PollInterval paces the progress stream publisher. Defaults to 500ms.
	PollInterval time.Duration
	Logger       *logrus.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		registry: cfg.Registry,
		worker:   cfg.Worker,
		engine:   cfg.Engine,
		cache:    cfg.Cache,
		proxy:    cfg.Proxy,
		cacheTTL: cfg.CacheTTL,
		poll:     cfg.PollInterval,
		logger:   cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.POST("/analyze", h.analyze)
		api.POST("/download", h.createTask)
		api.GET("/stream-progress/:task_id", h.streamProgress)
		api.GET("/check-status/:task_id", h.checkStatus)
		api.GET("/get-file/:task_id", h.getFile)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Accept-Language")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLang(c *gin.Context) string {
	return i18n.FromAcceptLanguage(c.GetHeader("Accept-Language"))
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type createTaskRequest struct {
	URL          string  `json:"url" binding:"required"`
	MediaType    string  `json:"mediaType" binding:"required,oneof=video audio"`
	FormatType   string  `json:"formatType" binding:"required"`
	Quality      string  `json:"quality" binding:"required"`
	FPS          float64 `json:"fps"`
	AudioQuality string  `json:"audioQuality"`
}

// createTask accepts a download request, registers the queued task entry
// synchronously and spawns the worker detached. The id is never visible
// before the registry entry exists.
func (h *Handler) createTask(c *gin.Context) {
	lang := requestLang(c)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := uuid.NewString()
	h.registry.Report(taskID, registry.Update{
		Message: i18n.T(lang, "task_added_to_queue", nil),
		Status:  domain.TaskStatusQueued,
	})

	// The worker's lifetime is independent of this request: it runs on the
	// background context, never the request's.
	go h.worker.Run(context.Background(), taskID, lang, worker.Request{
		URL:          req.URL,
		MediaType:    req.MediaType,
		FormatType:   req.FormatType,
		Quality:      req.Quality,
		FPS:          req.FPS,
		AudioQuality: req.AudioQuality,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "task_id": taskID})
}

func (h *Handler) checkStatus(c *gin.Context) {
	snap, ok := h.registry.Snapshot(c.Param("task_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  domain.TaskStatusNotFound,
			"message": "The specified task could not be found.",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) getFile(c *gin.Context) {
	lang := requestLang(c)

	snap, ok := h.registry.Snapshot(c.Param("task_id"))
	if ok && snap.Status == domain.TaskStatusComplete && snap.FinalFilepath != "" {
		if fileExists(snap.FinalFilepath) {
			name := snap.DownloadName
			if name == "" {
				name = "download.file"
			}
			h.logger.Infof("sending file %s as %q", snap.FinalFilepath, name)
			c.FileAttachment(snap.FinalFilepath, name)
			return
		}
	}

	h.logger.Errorf("file not found or task not complete for %s", c.Param("task_id"))
	c.JSON(http.StatusNotFound, gin.H{"error": i18n.T(lang, "file_not_found_or_incomplete", nil)})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (h *Handler) analyze(c *gin.Context) {
	lang := requestLang(c)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "url_not_provided", nil)})
		return
	}

	url := h.proxy.NormalizeURL(req.URL)
	h.logger.Infof("analyzing url: %s", url)

	if h.cache != nil {
		if cached, ok, err := h.cache.Get(c.Request.Context(), url, h.cacheTTL); err != nil {
			h.logger.Warnf("media cache read: %v", err)
		} else if ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	info, err := h.engine.ExtractInfo(c.Request.Context(), url, engine.InfoOptions{Proxy: h.proxy.URL()})
	if err != nil {
		if engine.IsDownloadError(err) {
			h.logger.Errorf("engine analyze error for %s: %v", url, err)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": i18n.T(lang, "download_error", map[string]string{"error": lastErrorSegment(err)}),
			})
			return
		}
		h.logger.Errorf("unexpected analyze error for %s: %v", url, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": i18n.T(lang, "unknown_error_occurred", map[string]string{"error": err.Error()}),
		})
		return
	}

	title := naming.CleanTitle(info.Title, info.ExtractorKey, info.Description)
	media := domain.BuildMediaInfo(*info, title)

	if h.cache != nil {
		if err := h.cache.Put(c.Request.Context(), url, &media); err != nil {
			h.logger.Warnf("media cache write: %v", err)
		}
	}

	c.JSON(http.StatusOK, media)
}

// lastErrorSegment trims an engine diagnostic down to its final colon-separated
// clause, the part worth showing a user.
func lastErrorSegment(err error) string {
	parts := strings.Split(err.Error(), ":")
	return strings.TrimSpace(parts[len(parts)-1])
}
