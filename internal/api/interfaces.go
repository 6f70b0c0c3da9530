// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/upload"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// UploadJobHandler reports chunked upload job progress
type UploadJobHandler interface {
	HandleUploadJobStatus(c echo.Context) error
}

// ProcessHandler handles marker processing session operations
type ProcessHandler interface {
	HandleStartProcess(c echo.Context) error
	HandleProcessStatus(c echo.Context) error
	HandleProcessProgressStream(c echo.Context) error
	HandleGetResult(c echo.Context) error
	HandleGetResultMsgpack(c echo.Context) error
	HandleGetPatterns(c echo.Context) error
	HandleGetLabels(c echo.Context) error
	HandlePatternsAt(c echo.Context) error
	HandleNearestPatterns(c echo.Context) error
	HandleFlip(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
}

// FormatHandler lists the supported plot formats
type FormatHandler interface {
	HandleListFormats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, fileName, filePath string, format models.Format, unit models.Unit) (*models.ProcessSession, error)
	GetSession(id string) (*models.ProcessSession, bool)
	TouchSession(id string) bool
	GetResult(id string) (*models.Result, error)
	Flip(id, axis string) (*models.Result, error)
	PatternsAt(id string, pt geometry.Point) ([]models.PatternView, error)
	NearestPatterns(id string, pt geometry.Point, k int) ([]models.PatternView, error)
	DeleteSession(id string) bool
	DeleteSessionsForFile(fileID string) int
	Count() int
}

// UploadJobs defines what the handlers need from the upload job manager
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *upload.Job
	GetJob(id string) (*upload.Job, bool)
}
