// handlers_upload_test.go - Tests for upload handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/session"
	"github.com/marker-visualizer/backend/internal/storage"
	"github.com/marker-visualizer/backend/internal/testutil"
	"github.com/marker-visualizer/backend/internal/upload"
)

var plotTypes = []string{".hpgl", ".plt", ".hpg", ".cut", ".cam", ".ggt"}

func newTestUploadHandler(store storage.Store) UploadHandler {
	return NewUploadHandler(store, nil, nil, UploadOptions{
		AllowedFileTypes:  plotTypes,
		AllowFileDeletion: true,
	})
}

func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T (%v)", err, err)
	}
	if apiErr.Status != status {
		t.Errorf("expected status %d, got %d", status, apiErr.Status)
	}
	if apiErr.Code != code {
		t.Errorf("expected error code %s, got %s", code, apiErr.Code)
	}
}

func TestUploadHandler_HandleUploadBase64(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadFileRequest
		wantStatus int
		wantErr    bool
		errCode    string
		wantFormat models.Format
	}{
		{
			name: "valid plot upload",
			request: uploadFileRequest{
				Name: "marker.plt",
				Data: base64.StdEncoding.EncodeToString([]byte("IN;PU0,0;")),
			},
			wantStatus: http.StatusCreated,
			wantFormat: models.FormatVectorPlotter,
		},
		{
			name: "empty name",
			request: uploadFileRequest{
				Data: base64.StdEncoding.EncodeToString([]byte("content")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "empty data",
			request: uploadFileRequest{
				Name: "marker.cut",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "invalid base64",
			request: uploadFileRequest{
				Name: "marker.cut",
				Data: "not-valid-base64!!!",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name: "disallowed extension",
			request: uploadFileRequest{
				Name: "notes.txt",
				Data: base64.StdEncoding.EncodeToString([]byte("hello")),
			},
			wantStatus: http.StatusUnsupportedMediaType,
			wantErr:    true,
			errCode:    "UNSUPPORTED_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			handler := newTestUploadHandler(store)

			e := echo.New()
			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/api/files/upload/base64", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.HandleUploadBase64(c)

			if tt.wantErr {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				if store.FileCount() != 0 {
					t.Errorf("expected nothing stored, got %d files", store.FileCount())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.ID == "" {
				t.Error("expected non-empty ID in response")
			}
			if response.Format != tt.wantFormat {
				t.Errorf("expected format %s, got %s", tt.wantFormat, response.Format)
			}
		})
	}
}

func TestUploadHandler_HandleUploadFile(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	handler := newTestUploadHandler(store)
	e := echo.New()

	t.Run("multipart upload", func(t *testing.T) {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		part, _ := writer.CreateFormFile("file", "marker.ggt")
		part.Write([]byte("[ 1 10\nEND\n"))
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if assert.NoError(t, handler.HandleUploadFile(c)) {
			assert.Equal(t, http.StatusCreated, rec.Code)
			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, "marker.ggt", info.Name)
			assert.Equal(t, models.FormatTaggedBlock, info.Format)
			assert.Equal(t, int64(11), info.Size)
		}
	})

	t.Run("missing file field", func(t *testing.T) {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		writer.WriteField("name", "marker.ggt")
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		c := e.NewContext(req, httptest.NewRecorder())

		assertAPIError(t, handler.HandleUploadFile(c), http.StatusBadRequest, "BAD_REQUEST")
	})
}

func TestUploadHandler_HandleGetRecentFiles(t *testing.T) {
	tests := []struct {
		name       string
		setupFiles map[string][]byte
		wantCount  int
	}{
		{
			name:       "empty storage",
			setupFiles: map[string][]byte{},
			wantCount:  0,
		},
		{
			name: "only plot files",
			setupFiles: map[string][]byte{
				"a.plt": []byte("IN;"),
				"b.cut": []byte("M14*"),
			},
			wantCount: 2,
		},
		{
			name: "unknown formats excluded",
			setupFiles: map[string][]byte{
				"a.hpgl":     []byte("IN;"),
				"notes.txt":  []byte("hello"),
				"rules.yaml": []byte("rules:"),
				"b.ggt":      []byte("END"),
			},
			wantCount: 2,
		},
		{
			name: "many files limited to 20",
			setupFiles: func() map[string][]byte {
				files := make(map[string][]byte)
				for i := 0; i < 30; i++ {
					files[fmt.Sprintf("marker%d.plt", i)] = []byte("IN;")
				}
				return files
			}(),
			wantCount: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			for name, data := range tt.setupFiles {
				store.AddFile(fmt.Sprintf("id-%s", name), name, data)
			}
			handler := newTestUploadHandler(store)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := handler.HandleGetRecentFiles(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
			}

			var files []models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if len(files) != tt.wantCount {
				t.Errorf("expected %d files, got %d", tt.wantCount, len(files))
			}
			for _, f := range files {
				if f.Format == "" {
					t.Errorf("found file without plot format: %s", f.Name)
				}
			}
		})
	}
}

func TestUploadHandler_HandleGetFile(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{name: "existing file", fileID: "test-id-1", wantStatus: http.StatusOK},
		{name: "missing file id", fileID: "", wantStatus: http.StatusBadRequest, wantErr: true, errCode: "VALIDATION_ERROR"},
		{name: "non-existent file", fileID: "does-not-exist", wantStatus: http.StatusNotFound, wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			store.AddFile("test-id-1", "marker.plt", []byte("IN;"))
			handler := newTestUploadHandler(store)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/files/:id", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleGetFile(c)

			if tt.wantErr {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var response models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.ID != tt.fileID {
				t.Errorf("expected ID %s, got %s", tt.fileID, response.ID)
			}
		})
	}
}

func TestUploadHandler_HandleUploadBase64_StoreFailure(t *testing.T) {
	store := testutil.NewMockStorage()
	store.WriteErr = errors.New("disk full")
	handler := newTestUploadHandler(store)

	body, _ := json.Marshal(uploadFileRequest{
		Name: "marker.plt",
		Data: base64.StdEncoding.EncodeToString([]byte("IN;")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/base64", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := echo.New().NewContext(req, httptest.NewRecorder())

	assertAPIError(t, handler.HandleUploadBase64(c), http.StatusInternalServerError, "INTERNAL_ERROR")
	assert.Equal(t, 0, store.FileCount())
}

func TestUploadHandler_HandleDeleteFile(t *testing.T) {
	t.Run("deletes file and its sessions", func(t *testing.T) {
		store, err := storage.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		info, err := store.SaveBytes("marker.plt", []byte(squarePlot))
		require.NoError(t, err)
		sessionMgr := session.NewManager(nil)
		_, err = sessionMgr.StartSession(info.ID, info.Name, mustPath(t, store, info.ID), "", "")
		require.NoError(t, err)

		handler := NewUploadHandler(store, sessionMgr, nil, UploadOptions{AllowFileDeletion: true})

		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/files/:id", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(info.ID)

		if assert.NoError(t, handler.HandleDeleteFile(c)) {
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
		remaining, err := store.List(0)
		require.NoError(t, err)
		assert.Empty(t, remaining)
		assert.Equal(t, 0, sessionMgr.Count())
	})

	t.Run("non-existent file", func(t *testing.T) {
		handler := newTestUploadHandler(testutil.NewMockStorage())
		c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("does-not-exist")

		assertAPIError(t, handler.HandleDeleteFile(c), http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("deletion disabled", func(t *testing.T) {
		store := testutil.NewMockStorage()
		store.AddFile("file-1", "marker.plt", []byte("IN;"))
		handler := NewUploadHandler(store, nil, nil, UploadOptions{})
		c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("file-1")

		assertAPIError(t, handler.HandleDeleteFile(c), http.StatusForbidden, "FORBIDDEN")
		assert.Equal(t, 1, store.FileCount())
	})
}

func TestUploadHandler_HandleRenameFile(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		newName    string
		wantErr    bool
		wantStatus int
		errCode    string
		wantFormat models.Format
	}{
		{name: "rename keeps format", fileID: "file-1", newName: "renamed.hpgl", wantFormat: models.FormatVectorPlotter},
		{name: "rename switches format", fileID: "file-1", newName: "renamed.cam", wantFormat: models.FormatKnifePlotter},
		{name: "empty name", fileID: "file-1", newName: "", wantErr: true, wantStatus: http.StatusBadRequest, errCode: "VALIDATION_ERROR"},
		{name: "disallowed extension", fileID: "file-1", newName: "renamed.doc", wantErr: true, wantStatus: http.StatusUnsupportedMediaType, errCode: "UNSUPPORTED_FORMAT"},
		{name: "unknown file", fileID: "nope", newName: "x.plt", wantErr: true, wantStatus: http.StatusNotFound, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			store.AddFile("file-1", "marker.plt", []byte("IN;"))
			handler := newTestUploadHandler(store)

			e := echo.New()
			body, _ := json.Marshal(renameFileRequest{Name: tt.newName})
			req := httptest.NewRequest(http.MethodPut, "/api/files/:id", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleRenameFile(c)
			if tt.wantErr {
				assertAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			require.NoError(t, err)

			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.newName, info.Name)
			assert.Equal(t, tt.wantFormat, info.Format)
		})
	}
}

func TestChunkedUpload(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	jobs := upload.NewManager(store)
	handler := NewUploadHandler(store, nil, jobs, UploadOptions{AllowedFileTypes: plotTypes})
	jobHandler := NewUploadJobHandler(jobs)
	e := echo.New()

	content := []byte(squarePlot)
	chunks := [][]byte{content[:10], content[10:]}
	for i, chunk := range chunks {
		body, _ := json.Marshal(uploadChunkRequest{
			UploadID:    "upload-1",
			ChunkIndex:  i,
			Data:        base64.StdEncoding.EncodeToString(chunk),
			TotalChunks: len(chunks),
		})
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload/chunk", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		if assert.NoError(t, handler.HandleUploadChunk(e.NewContext(req, rec))) {
			assert.Equal(t, http.StatusAccepted, rec.Code)
		}
	}

	body, _ := json.Marshal(completeUploadRequest{
		UploadID:     "upload-1",
		Name:         "marker.plt",
		TotalChunks:  len(chunks),
		OriginalSize: int64(len(content)),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	require.NoError(t, handler.HandleCompleteUpload(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var started struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	var job upload.Job
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("jobId")
		c.SetParamValues(started.JobID)
		if err := jobHandler.HandleUploadJobStatus(c); err != nil {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == upload.StatusComplete || job.Status == upload.StatusError
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, upload.StatusComplete, job.Status, job.Error)
	require.NotNil(t, job.FileInfo)
	assert.Equal(t, models.FormatVectorPlotter, job.FileInfo.Format)
	assert.Equal(t, int64(len(content)), job.FileInfo.Size)

	t.Run("disallowed name", func(t *testing.T) {
		body, _ := json.Marshal(completeUploadRequest{UploadID: "u", Name: "notes.txt.gz", TotalChunks: 1})
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		err := handler.HandleCompleteUpload(e.NewContext(req, httptest.NewRecorder()))
		assertAPIError(t, err, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT")
	})

	t.Run("unknown job", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("jobId")
		c.SetParamValues("missing")
		err := jobHandler.HandleUploadJobStatus(c)
		assertAPIError(t, err, http.StatusNotFound, "NOT_FOUND")
		assert.True(t, strings.Contains(err.Error(), "upload job"))
	})
}

func mustPath(t *testing.T, store storage.Store, id string) string {
	t.Helper()
	path, err := store.GetFilePath(id)
	require.NoError(t, err)
	return path
}
