// Package testutil holds in-memory fakes shared by handler tests.
package testutil

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/storage"
)

// MockStorage is a map-backed storage.Store. Plot bytes never touch disk,
// so GetFilePath returns a placeholder path.
type MockStorage struct {
	mu      sync.RWMutex
	entries map[string]*models.FileInfo
	parts   map[string]map[int]int64
	nextID  int

	// WriteErr, when set, fails every write.
	WriteErr error
}

var _ storage.Store = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		entries: make(map[string]*models.FileInfo),
		parts:   make(map[string]map[int]int64),
	}
}

// AddFile registers a plot under a fixed id.
func (m *MockStorage) AddFile(id, name string, data []byte) *models.FileInfo {
	info := plotInfo(id, name, int64(len(data)))
	m.RegisterFile(info)
	return info
}

// FileCount reports how many plots are stored.
func (m *MockStorage) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStorage) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	if m.WriteErr != nil {
		return nil, m.WriteErr
	}
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("plot-%d", m.nextID)
	m.mu.Unlock()
	return m.AddFile(id, name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.entries[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return info, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	out := make([]*models.FileInfo, 0, len(m.entries))
	for _, info := range m.entries {
		out = append(out, info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.entries[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	renamed := plotInfo(id, newName, info.Size)
	renamed.UploadedAt = info.UploadedAt
	m.entries[id] = renamed
	return renamed, nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	if _, err := m.Get(id); err != nil {
		return "", err
	}
	return "/mock/plots/" + id, nil
}

func (m *MockStorage) RegisterFile(info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[info.ID] = info
}

func (m *MockStorage) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.SaveChunkBytes(uploadID, chunkIndex, data)
}

// SaveChunkBytes only records chunk sizes; assembled plots carry no content.
func (m *MockStorage) SaveChunkBytes(uploadID string, chunkIndex int, data []byte) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parts[uploadID] == nil {
		m.parts[uploadID] = make(map[int]int64)
	}
	m.parts[uploadID][chunkIndex] = int64(len(data))
	return nil
}

func (m *MockStorage) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	m.mu.Lock()
	sizes := m.parts[uploadID]
	var total int64
	for i := 0; i < totalChunks; i++ {
		n, ok := sizes[i]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("missing chunk %d of upload %s", i, uploadID)
		}
		total += n
	}
	delete(m.parts, uploadID)
	m.mu.Unlock()

	info := plotInfo(uploadID, name, total)
	m.RegisterFile(info)
	return info, nil
}

func plotInfo(id, name string, size int64) *models.FileInfo {
	format, _ := models.FormatForFile(name)
	return &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		Format:     format,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
}
