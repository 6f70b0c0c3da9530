// handlers_upload.go - Plot file upload operation handlers
package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/storage"
)

// recentFilesLimit caps the recent files listing.
const recentFilesLimit = 20

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store       storage.Store
	sessionMgr  SessionManager
	uploads     UploadJobs
	allowed     map[string]bool
	allowDelete bool
}

// UploadOptions carries the security settings for uploads.
type UploadOptions struct {
	// AllowedFileTypes lists accepted extensions with leading dot.
	// Empty accepts every extension a format is known for.
	AllowedFileTypes []string

	AllowFileDeletion bool
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, sessionMgr SessionManager, uploads UploadJobs, opts UploadOptions) UploadHandler {
	allowed := make(map[string]bool, len(opts.AllowedFileTypes))
	for _, ext := range opts.AllowedFileTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &UploadHandlerImpl{
		store:       store,
		sessionMgr:  sessionMgr,
		uploads:     uploads,
		allowed:     allowed,
		allowDelete: opts.AllowFileDeletion,
	}
}

// HandleUploadFile accepts a plot file as multipart/form-data
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkFileType(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadBase64 accepts a plot file as base64 JSON
func (h *UploadHandlerImpl) HandleUploadBase64(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkFileType(req.Name); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunkBytes(req.UploadID, req.ChunkIndex, decoded); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload assembles a chunked upload in the background
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	// A gzip upload is checked against the name it will have once inflated.
	if err := h.checkFileType(strings.TrimSuffix(req.Name, ".gz")); err != nil {
		return err
	}

	job := h.uploads.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleGetRecentFiles returns the most recently uploaded plot files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	plots := filterPlotFiles(files)
	if len(plots) > recentFilesLimit {
		plots = plots[:recentFilesLimit]
	}

	return c.JSON(http.StatusOK, plots)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file and every session built from it
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	if !h.allowDelete {
		return NewForbiddenError("file deletion is disabled")
	}

	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return NewNotFoundError("file", id)
		}
		return NewInternalError("failed to delete file", err)
	}

	if h.sessionMgr != nil {
		if n := h.sessionMgr.DeleteSessionsForFile(id); n > 0 {
			fmt.Printf("[Upload] Deleted %d session(s) for file %s\n", n, id)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}
	if err := h.checkFileType(req.Name); err != nil {
		return err
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// UploadJobHandlerImpl implements the UploadJobHandler interface
type UploadJobHandlerImpl struct {
	uploads UploadJobs
}

// NewUploadJobHandler creates a new upload job handler instance
func NewUploadJobHandler(uploads UploadJobs) UploadJobHandler {
	return &UploadJobHandlerImpl{uploads: uploads}
}

// HandleUploadJobStatus returns the state of a chunked upload job
func (h *UploadJobHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.uploads.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}

	return c.JSON(http.StatusOK, job)
}

// checkFileType rejects names whose extension is not allowed.
func (h *UploadHandlerImpl) checkFileType(name string) error {
	if len(h.allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !h.allowed[ext] {
		return NewUnsupportedFormatError(fmt.Errorf("file type %q is not allowed", ext))
	}
	return nil
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// Helper functions

// filterPlotFiles keeps files with a recognised plot format.
func filterPlotFiles(files []*models.FileInfo) []*models.FileInfo {
	plots := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if f.Format != "" {
			plots = append(plots, f)
		}
	}
	return plots
}
