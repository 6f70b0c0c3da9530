// handlers_process.go - Marker processing session handlers
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/processor"
	"github.com/marker-visualizer/backend/internal/storage"
)

const (
	defaultNearestCount = 5
	maxNearestCount     = 100
)

// ProcessHandlerImpl implements the ProcessHandler interface
type ProcessHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewProcessHandler creates a new process handler instance
func NewProcessHandler(store storage.Store, sessionMgr SessionManager) ProcessHandler {
	return &ProcessHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

// HandleStartProcess starts a processing session for an uploaded plot file
func (h *ProcessHandlerImpl) HandleStartProcess(c echo.Context) error {
	var req startProcessRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	var format models.Format
	if req.Format != "" {
		f, err := models.ParseFormat(req.Format)
		if err != nil {
			return NewUnsupportedFormatError(err)
		}
		format = f
	}
	var unit models.Unit
	if req.Unit != "" {
		u, err := models.ParseUnit(req.Unit)
		if err != nil {
			return NewBadRequestError("invalid unit", err)
		}
		unit = u
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	sess, err := h.sessionMgr.StartSession(info.ID, info.Name, path, format, unit)
	if err != nil {
		if errors.Is(err, processor.ErrUnsupportedFormat) {
			return NewUnsupportedFormatError(err)
		}
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleProcessStatus returns the current status of a processing session
func (h *ProcessHandlerImpl) HandleProcessStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleProcessProgressStream streams processing progress via SSE
func (h *ProcessHandlerImpl) HandleProcessProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}
	h.sendSSEData(c, sess)
	if isTerminal(sess.Status) {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)
			if isTerminal(sess.Status) {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// HandleGetResult returns the full processing result as JSON
func (h *ProcessHandlerImpl) HandleGetResult(c echo.Context) error {
	res, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleGetResultMsgpack returns the full processing result as MessagePack
func (h *ProcessHandlerImpl) HandleGetResultMsgpack(c echo.Context) error {
	res, err := h.result(c)
	if err != nil {
		return err
	}

	data, err := encodeMsgpack(res)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetPatterns returns only the patterns of a result
func (h *ProcessHandlerImpl) HandleGetPatterns(c echo.Context) error {
	res, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res.Patterns)
}

// HandleGetLabels returns only the ordered labels of a result
func (h *ProcessHandlerImpl) HandleGetLabels(c echo.Context) error {
	res, err := h.result(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res.Labels)
}

// HandlePatternsAt returns the patterns whose outline contains ?x=&y=
func (h *ProcessHandlerImpl) HandlePatternsAt(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	pt, err := pointParams(c)
	if err != nil {
		return err
	}

	hits, err := h.sessionMgr.PatternsAt(id, pt)
	if err != nil {
		return sessionError(err, id)
	}

	return c.JSON(http.StatusOK, hits)
}

// HandleNearestPatterns returns the k patterns closest to ?x=&y=
func (h *ProcessHandlerImpl) HandleNearestPatterns(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	pt, err := pointParams(c)
	if err != nil {
		return err
	}
	hits, err := h.sessionMgr.NearestPatterns(id, pt, nearestCount(c.QueryParam("k")))
	if err != nil {
		return sessionError(err, id)
	}

	return c.JSON(http.StatusOK, hits)
}

// HandleFlip mirrors the marker and returns the re-associated result
func (h *ProcessHandlerImpl) HandleFlip(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	var req flipRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Axis == "" {
		return NewValidationError("axis")
	}

	res, err := h.sessionMgr.Flip(id, req.Axis)
	if err != nil {
		return sessionError(err, id)
	}

	return c.JSON(http.StatusOK, res)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ProcessHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleDeleteSession drops a session and everything its processor holds
func (h *ProcessHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if !h.sessionMgr.DeleteSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// result loads the current result of the session named in the path.
func (h *ProcessHandlerImpl) result(c echo.Context) (*models.Result, error) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	res, err := h.sessionMgr.GetResult(id)
	if err != nil {
		return nil, sessionError(err, id)
	}
	return res, nil
}

func (h *ProcessHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *ProcessHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}

// Request types

type startProcessRequest struct {
	FileID string `json:"fileId"`
	Format string `json:"format,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

type flipRequest struct {
	Axis string `json:"axis"` // "horizontal" or "vertical"
}

// Helper functions

func isTerminal(s models.SessionStatus) bool {
	return s == models.SessionStatusComplete || s == models.SessionStatusError
}

// pointParams reads the x and y query parameters in millimetres.
// nearestCount reads k: missing or non-positive values use the default,
// larger ones are capped.
func nearestCount(raw string) int {
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 {
		return defaultNearestCount
	}
	return min(k, maxNearestCount)
}

func pointParams(c echo.Context) (geometry.Point, error) {
	x, err := strconv.ParseFloat(c.QueryParam("x"), 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return geometry.Point{}, NewValidationError("x")
	}
	y, err := strconv.ParseFloat(c.QueryParam("y"), 64)
	if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
		return geometry.Point{}, NewValidationError("y")
	}
	return geometry.Point{X: x, Y: y}, nil
}

// encodeMsgpack encodes v with the same field names the JSON endpoints use.
func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
