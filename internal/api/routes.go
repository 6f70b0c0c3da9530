// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/marker-visualizer/backend/internal/parser"
	"github.com/marker-visualizer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	UploadMgr  UploadJobs
	Registry   *parser.Registry // nil means the global registry
	Version    string

	AllowedFileTypes  []string
	AllowFileDeletion bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	UploadJob UploadJobHandler
	Process   ProcessHandler
	Formats   FormatHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.SessionMgr),
		Upload: NewUploadHandler(deps.Store, deps.SessionMgr, deps.UploadMgr, UploadOptions{
			AllowedFileTypes:  deps.AllowedFileTypes,
			AllowFileDeletion: deps.AllowFileDeletion,
		}),
		UploadJob: NewUploadJobHandler(deps.UploadMgr),
		Process:   NewProcessHandler(deps.Store, deps.SessionMgr),
		Formats:   NewFormatHandler(deps.Registry),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)

	e.GET("/api/formats", handlers.Formats.HandleListFormats)

	// File upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.POST("/upload/base64", handlers.Upload.HandleUploadBase64)
	uploadGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	uploadGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	uploadGroup.GET("/upload/:jobId/status", handlers.UploadJob.HandleUploadJobStatus)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	uploadGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Processing session routes
	processGroup := e.Group("/api/process")
	processGroup.POST("", handlers.Process.HandleStartProcess)
	processGroup.GET("/:sessionId/status", handlers.Process.HandleProcessStatus)
	processGroup.GET("/:sessionId/progress", handlers.Process.HandleProcessProgressStream)
	processGroup.POST("/:sessionId/keepalive", handlers.Process.HandleSessionKeepAlive)
	processGroup.GET("/:sessionId/result", handlers.Process.HandleGetResult)
	processGroup.GET("/:sessionId/result/msgpack", handlers.Process.HandleGetResultMsgpack)
	processGroup.GET("/:sessionId/patterns", handlers.Process.HandleGetPatterns)
	processGroup.GET("/:sessionId/patterns/at", handlers.Process.HandlePatternsAt)
	processGroup.GET("/:sessionId/patterns/nearest", handlers.Process.HandleNearestPatterns)
	processGroup.GET("/:sessionId/labels", handlers.Process.HandleGetLabels)
	processGroup.POST("/:sessionId/flip", handlers.Process.HandleFlip)
	processGroup.DELETE("/:sessionId", handlers.Process.HandleDeleteSession)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
