package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/processor"
)

// squarePlot is a 101.6 mm square with one label in its middle.
const squarePlot = "IN;PU0,0;PD4000,0,4000,4000,0,4000,0,0;PU;PU2000,2000;LBSIZE-M;"

func writePlot(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func waitForSession(t *testing.T, m *Manager, id string) *models.ProcessSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := m.GetSession(id)
		require.True(t, ok, "session not found")
		if s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s did not finish", id)
	return nil
}

func startSquare(t *testing.T, m *Manager) *models.ProcessSession {
	t.Helper()
	path := writePlot(t, "marker.plt", []byte(squarePlot))
	sess, err := m.StartSession("file-1", "marker.plt", path, "", "")
	require.NoError(t, err)
	done := waitForSession(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, "errors: %v", done.Errors)
	return done
}

func TestSessionManager_StartAndResult(t *testing.T) {
	m := NewManager(nil)

	path := writePlot(t, "marker.plt", []byte(squarePlot))
	sess, err := m.StartSession("file-1", "marker.plt", path, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FormatVectorPlotter, sess.Format)
	assert.Equal(t, models.UnitMM, sess.Unit)
	assert.Equal(t, "marker.plt", sess.FileName)

	done := waitForSession(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, "errors: %v", done.Errors)
	assert.Equal(t, 100.0, done.Progress)
	assert.Equal(t, 1, done.PatternCount)
	assert.Equal(t, 2, done.LabelCount)
	assert.False(t, done.HasOverlapError)

	res, err := m.GetResult(sess.ID)
	require.NoError(t, err)
	require.Len(t, res.Patterns, 1)
	require.Len(t, res.Labels, 2)
	assert.True(t, res.Labels[0].Reference)
	assert.Equal(t, "SIZE-M\r", res.Labels[1].Text)
	assert.Equal(t, "SIZE-M\r", res.Patterns[0].Label)
}

func TestSessionManager_Flip(t *testing.T) {
	m := NewManager(nil)
	sess := startSquare(t, m)

	res, err := m.Flip(sess.ID, "horizontal")
	require.NoError(t, err)
	assert.True(t, res.FlipHorizontal)
	assert.False(t, res.FlipVertical)

	s, _ := m.GetSession(sess.ID)
	assert.True(t, s.FlipHorizontal)

	res, err = m.Flip(sess.ID, "V")
	require.NoError(t, err)
	assert.True(t, res.FlipVertical)

	_, err = m.Flip(sess.ID, "diagonal")
	assert.True(t, errors.Is(err, ErrInvalidAxis))

	_, err = m.Flip("missing", "horizontal")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionManager_PatternQueries(t *testing.T) {
	m := NewManager(nil)
	sess := startSquare(t, m)

	hits, err := m.PatternsAt(sess.ID, geometry.Point{X: 50, Y: 50})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].ID)

	hits, err = m.PatternsAt(sess.ID, geometry.Point{X: 500, Y: 500})
	require.NoError(t, err)
	assert.Empty(t, hits)

	near, err := m.NearestPatterns(sess.ID, geometry.Point{X: 500, Y: 500}, 3)
	require.NoError(t, err)
	assert.Len(t, near, 1)

	_, err = m.PatternsAt("missing", geometry.Point{})
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionManager_StartErrors(t *testing.T) {
	m := NewManager(nil)

	t.Run("unknown extension", func(t *testing.T) {
		_, err := m.StartSession("f", "notes.txt", "/nonexistent", "", "")
		assert.True(t, errors.Is(err, processor.ErrUnsupportedFormat))
	})

	t.Run("unknown explicit format", func(t *testing.T) {
		_, err := m.StartSession("f", "marker.plt", "/nonexistent", "dxf", "")
		assert.True(t, errors.Is(err, processor.ErrUnsupportedFormat))
	})

	t.Run("missing file", func(t *testing.T) {
		sess, err := m.StartSession("f", "marker.plt", filepath.Join(t.TempDir(), "gone.plt"), "", "")
		require.NoError(t, err)
		done := waitForSession(t, m, sess.ID)
		assert.Equal(t, models.SessionStatusError, done.Status)
		require.NotEmpty(t, done.Errors)
		assert.Contains(t, done.Errors[0].Reason, "failed to read file")

		_, err = m.GetResult(sess.ID)
		assert.True(t, errors.Is(err, ErrSessionNotReady))
	})

	t.Run("empty file", func(t *testing.T) {
		path := writePlot(t, "empty.plt", []byte("  \n"))
		sess, err := m.StartSession("f", "empty.plt", path, "", "")
		require.NoError(t, err)
		done := waitForSession(t, m, sess.ID)
		assert.Equal(t, models.SessionStatusError, done.Status)
		require.NotEmpty(t, done.Errors)
		assert.Equal(t, processor.ErrEmptyContent.Error(), done.Errors[len(done.Errors)-1].Reason)
	})
}

func TestSessionManager_DecodesLatin1(t *testing.T) {
	m := NewManager(nil)

	// "GRÖSSE" with Ö as the single ISO-8859-1 byte 0xD6.
	data := []byte("IN;PU0,0;PD4000,0,4000,4000,0,4000,0,0;PU;PU2000,2000;LBGR\xd6SSE;")
	path := writePlot(t, "marker.hpgl", data)

	sess, err := m.StartSession("f", "marker.hpgl", path, "", models.UnitIN)
	require.NoError(t, err)
	done := waitForSession(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, done.Status, "errors: %v", done.Errors)

	res, err := m.GetResult(sess.ID)
	require.NoError(t, err)
	require.Len(t, res.Labels, 2)
	assert.Equal(t, "GRÖSSE\r", res.Labels[1].Text)
	assert.Equal(t, models.UnitIN, res.Unit)
	assert.Equal(t, "L: 4.00, W: 4.00", res.PrintableDimensions)
}

func TestSessionManager_FormatOverride(t *testing.T) {
	profile := models.DefaultProcessingProfile()
	profile.FormatOverrides = map[string]models.Format{".txt": models.FormatVectorPlotter}
	m := NewManager(profile)

	f, err := m.ResolveFormat("MARKER.TXT")
	require.NoError(t, err)
	assert.Equal(t, models.FormatVectorPlotter, f)

	f, err = m.ResolveFormat("job.ggt")
	require.NoError(t, err)
	assert.Equal(t, models.FormatTaggedBlock, f)
}

func TestSessionManager_Delete(t *testing.T) {
	m := NewManager(nil)
	a := startSquare(t, m)
	b := startSquare(t, m)

	assert.True(t, m.DeleteSession(a.ID))
	assert.False(t, m.DeleteSession(a.ID))
	_, ok := m.GetSession(a.ID)
	assert.False(t, ok)

	assert.Equal(t, 1, m.DeleteSessionsForFile("file-1"))
	_, ok = m.GetSession(b.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestSessionManager_Cleanup(t *testing.T) {
	m := NewManager(nil)
	old := startSquare(t, m)
	fresh := startSquare(t, m)

	m.mu.Lock()
	m.sessions[old.ID].LastAccessed = time.Now().Add(-2 * SessionMaxAge)
	m.mu.Unlock()

	m.CleanupOldSessions(SessionMaxAge)

	_, ok := m.GetSession(old.ID)
	assert.False(t, ok, "aged session should be removed")
	_, ok = m.GetSession(fresh.ID)
	assert.True(t, ok, "recently used session should survive")

	assert.True(t, m.TouchSession(fresh.ID))
	assert.False(t, m.TouchSession(old.ID))
}

func TestSessionManager_EvictsAtCapacity(t *testing.T) {
	m := NewManager(nil)
	m.SetMaxSessions(2)

	first := startSquare(t, m)
	second := startSquare(t, m)

	m.mu.Lock()
	m.sessions[first.ID].LastAccessed = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	third := startSquare(t, m)

	assert.Equal(t, 2, m.Count())
	_, ok := m.GetSession(first.ID)
	assert.False(t, ok, "least recently used session should be evicted")
	_, ok = m.GetSession(second.ID)
	assert.True(t, ok)
	_, ok = m.GetSession(third.ID)
	assert.True(t, ok)
}
