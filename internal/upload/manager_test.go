package upload

import (
	"bytes"
	"compress/gzip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/storage"
)

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := m.GetJob(id)
		require.True(t, ok)
		if job.Status == StatusComplete || job.Status == StatusError {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestStartJob_PlainChunks(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(store)

	require.NoError(t, store.SaveChunkBytes("up-1", 0, []byte("IN;PU0,0;")))
	require.NoError(t, store.SaveChunkBytes("up-1", 1, []byte("PD4000,0;")))

	started := m.StartJob("up-1", "marker.plt", 2, 18, 18, "")
	assert.Equal(t, StatusProcessing, started.Status)

	job := waitForJob(t, m, started.ID)
	require.Equal(t, StatusComplete, job.Status, job.Error)
	require.NotNil(t, job.FileInfo)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, int64(18), job.FileInfo.Size)
	assert.Equal(t, models.FormatVectorPlotter, job.FileInfo.Format)

	path, err := store.GetFilePath(job.FileInfo.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "IN;PU0,0;PD4000,0;", string(data))
}

func TestStartJob_GzipSniffed(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(store)

	plain := []byte("N1*M15*X100Y100*M14*")
	packed := gzipBytes(t, plain)
	half := len(packed) / 2
	require.NoError(t, store.SaveChunkBytes("up-2", 0, packed[:half]))
	require.NoError(t, store.SaveChunkBytes("up-2", 1, packed[half:]))

	started := m.StartJob("up-2", "job.cut.gz", 2, int64(len(plain)), int64(len(packed)), "")
	job := waitForJob(t, m, started.ID)
	require.Equal(t, StatusComplete, job.Status, job.Error)

	assert.Equal(t, "job.cut", job.FileInfo.Name)
	assert.Equal(t, models.FormatKnifePlotter, job.FileInfo.Format)
	assert.Equal(t, int64(len(plain)), job.FileInfo.Size)

	stored, err := store.Get(job.FileInfo.ID)
	require.NoError(t, err)
	assert.Equal(t, "job.cut", stored.Name)

	path, _ := store.GetFilePath(job.FileInfo.ID)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, plain, data)
}

func TestStartJob_Errors(t *testing.T) {
	t.Run("missing chunks", func(t *testing.T) {
		store, err := storage.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		m := NewManager(store)

		job := waitForJob(t, m, m.StartJob("never-sent", "x.plt", 2, 0, 0, "").ID)
		assert.Equal(t, StatusError, job.Status)
		assert.Contains(t, job.Error, "failed to assemble chunks")
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("declared gzip that is not", func(t *testing.T) {
		store, err := storage.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		m := NewManager(store)

		require.NoError(t, store.SaveChunkBytes("up-3", 0, []byte("IN;")))
		job := waitForJob(t, m, m.StartJob("up-3", "x.plt", 1, 3, 3, "gzip").ID)
		assert.Equal(t, StatusError, job.Status)
		assert.Contains(t, job.Error, "decompress")
	})

	t.Run("size mismatch", func(t *testing.T) {
		store, err := storage.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		m := NewManager(store)

		require.NoError(t, store.SaveChunkBytes("up-4", 0, gzipBytes(t, []byte("IN;"))))
		job := waitForJob(t, m, m.StartJob("up-4", "x.plt.gz", 1, 99, 0, "gzip").ID)
		assert.Equal(t, StatusError, job.Status)
		assert.Contains(t, job.Error, "size mismatch")
	})
}

func TestGetJobReturnsCopy(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(store)
	require.NoError(t, store.SaveChunkBytes("up-5", 0, []byte("IN;")))

	id := waitForJob(t, m, m.StartJob("up-5", "a.plt", 1, 3, 3, "").ID).ID

	job, _ := m.GetJob(id)
	job.Status = StatusError
	job.FileInfo.Name = "changed"

	again, _ := m.GetJob(id)
	assert.Equal(t, StatusComplete, again.Status)
	assert.Equal(t, "a.plt", again.FileInfo.Name)

	_, ok := m.GetJob("missing")
	assert.False(t, ok)
}

func TestCleanupOldJobs(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(store)
	require.NoError(t, store.SaveChunkBytes("up-6", 0, []byte("IN;")))

	id := waitForJob(t, m, m.StartJob("up-6", "a.plt", 1, 3, 3, "").ID).ID

	m.CleanupOldJobs(time.Hour)
	_, ok := m.GetJob(id)
	assert.True(t, ok, "recent job must survive")

	m.CleanupOldJobs(-time.Second)
	_, ok = m.GetJob(id)
	assert.False(t, ok)
}
