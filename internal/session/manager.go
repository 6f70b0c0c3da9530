package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marker-visualizer/backend/internal/config"
	"github.com/marker-visualizer/backend/internal/geometry"
	"github.com/marker-visualizer/backend/internal/models"
	"github.com/marker-visualizer/backend/internal/parser"
	"github.com/marker-visualizer/backend/internal/processor"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionNotReady = errors.New("session has not finished processing")
	ErrInvalidAxis     = errors.New("axis must be horizontal or vertical")
)

// Manager handles active marker processing sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	registry    *parser.Registry
	profile     *models.ProcessingProfile
	maxSessions int
}

// SessionState holds the session metadata and the processor that owns the
// marker state.
type SessionState struct {
	Session      *models.ProcessSession
	Processor    *processor.Processor
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)
}

// NewManager creates a session manager using the given processing profile.
// A nil profile means the built-in defaults.
func NewManager(profile *models.ProcessingProfile) *Manager {
	return NewManagerWithRegistry(profile, parser.GetGlobalRegistry())
}

// NewManagerWithRegistry creates a session manager that looks interpreters
// up in registry.
func NewManagerWithRegistry(profile *models.ProcessingProfile, registry *parser.Registry) *Manager {
	if profile == nil {
		profile = models.DefaultProcessingProfile()
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		registry:    registry,
		profile:     profile,
		maxSessions: MaxSessions,
	}
}

// SetMaxSessions changes the session cap. Values below one are ignored.
func (m *Manager) SetMaxSessions(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// Profile returns the processing profile sessions are started with.
func (m *Manager) Profile() *models.ProcessingProfile {
	return m.profile
}

// ResolveFormat picks the format for a file name: profile overrides first,
// then the built-in extension table.
func (m *Manager) ResolveFormat(fileName string) (models.Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if f, ok := m.profile.FormatOverrides[ext]; ok {
		return f, nil
	}
	return models.FormatForFile(fileName)
}

// StartSession begins processing a plot file. An empty format is derived from
// the file name and an empty unit falls back to the profile default.
func (m *Manager) StartSession(fileID, fileName, filePath string, format models.Format, unit models.Unit) (*models.ProcessSession, error) {
	if format == "" {
		f, err := m.ResolveFormat(fileName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", processor.ErrUnsupportedFormat, err)
		}
		format = f
	}
	if _, err := m.registry.ByFormat(format); err != nil {
		return nil, fmt.Errorf("%w: %q", processor.ErrUnsupportedFormat, format)
	}
	if unit == "" {
		unit = m.profile.DefaultUnit
	}

	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewProcessSession(sessionID, fileID, format, unit)
	session.FileName = fileName

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	snapshot := session.Clone()
	m.mu.Unlock()

	// Run processing in a background goroutine
	go m.runProcess(sessionID, filePath, format, unit)

	return snapshot, nil
}

func (m *Manager) runProcess(sessionID, filePath string, format models.Format, unit models.Unit) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Process %s] PANIC recovered: %v\n", sessionID[:8], r)
			m.updateSessionError(sessionID, fmt.Sprintf("processing panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Process %s] Starting %s processing of %s\n", sessionID[:8], format, filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("[Process %s] ERROR reading file: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	content, err := config.DecodeText(data, m.profile.InputEncoding)
	if err != nil {
		fmt.Printf("[Process %s] ERROR decoding file: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to decode file: %v", err))
		return
	}

	m.setStatus(sessionID, models.SessionStatusProcessing, 10)

	// Interpretation is 10-90%, association and overlap checks the rest.
	progressCb := func(tokens, total int) {
		progress := 10.0
		if total > 0 {
			progress = 10.0 + float64(tokens)*80.0/float64(total)
		}
		if progress > 89.9 {
			progress = 89.9
		}
		m.setStatus(sessionID, models.SessionStatusProcessing, progress)
	}

	proc, err := processor.New(content, format, unit, m.profile,
		processor.WithRegistry(m.registry),
		processor.WithProgress(progressCb))
	if err != nil {
		fmt.Printf("[Process %s] ERROR: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, err.Error())
		return
	}

	result, err := proc.Start()
	if err != nil {
		fmt.Printf("[Process %s] ERROR: processing failed: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, err.Error())
		return
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Process %s] Complete: %d patterns, %d labels, %d skipped tokens in %dms\n",
		sessionID[:8], len(result.Patterns), len(result.Labels), len(result.ParseErrors), elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		// Deleted while processing.
		proc.Clear()
		return
	}

	state.Processor = proc
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.ProcessingTimeMs = elapsed
	state.Session.Errors = append([]models.ParseError(nil), result.ParseErrors...)
	applyResult(state.Session, result)
}

// applyResult copies the summary fields of a result onto the session.
func applyResult(s *models.ProcessSession, res *models.Result) {
	s.PatternCount = len(res.Patterns)
	s.LabelCount = len(res.Labels)
	s.FlipHorizontal = res.FlipHorizontal
	s.FlipVertical = res.FlipVertical
	s.HasOverlapError = res.HasOverlapError
	s.Warnings = append([]string(nil), res.Warnings...)
}

func (m *Manager) setStatus(sessionID string, status models.SessionStatus, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = status
		state.Session.Progress = progress
	}
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, models.ParseError{
		Reason: reason,
	})
}

// cleanupOldSessionsIfNeeded removes the least recently used finished
// sessions when at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	var finished []string
	for id, state := range m.sessions {
		if isFinished(state.Session.Status) {
			finished = append(finished, id)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return m.sessions[finished[i]].LastAccessed.Before(m.sessions[finished[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		id := finished[i]
		m.removeLocked(id)
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", id[:8])
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if !isFinished(state.Session.Status) {
			continue
		}

		// Don't clean up sessions that are actively being used
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		if state.LastAccessed.Before(cutoff) {
			m.removeLocked(id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				id[:8], time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

func isFinished(s models.SessionStatus) bool {
	return s == models.SessionStatusComplete || s == models.SessionStatusError
}

func (m *Manager) removeLocked(id string) {
	if state, ok := m.sessions[id]; ok {
		if state.Processor != nil {
			state.Processor.Clear()
		}
		delete(m.sessions, id)
	}
}

// GetSession returns a copy of a session by ID.
func (m *Manager) GetSession(id string) (*models.ProcessSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session.Clone(), true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// processorFor returns the processor of a completed session and marks the
// session as accessed.
func (m *Manager) processorFor(id string) (*processor.Processor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if state.Processor == nil {
		return nil, ErrSessionNotReady
	}
	state.LastAccessed = time.Now()
	return state.Processor, nil
}

// GetResult returns a snapshot of the session's current marker state.
func (m *Manager) GetResult(id string) (*models.Result, error) {
	proc, err := m.processorFor(id)
	if err != nil {
		return nil, err
	}
	return proc.Snapshot()
}

// Flip mirrors the session's marker along axis ("horizontal" or "vertical")
// and returns the new state.
func (m *Manager) Flip(id, axis string) (*models.Result, error) {
	var flip func(*processor.Processor) (*models.Result, error)
	switch strings.ToLower(strings.TrimSpace(axis)) {
	case "horizontal", "h", "x":
		flip = (*processor.Processor).FlipHorizontal
	case "vertical", "v", "y":
		flip = (*processor.Processor).FlipVertical
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAxis, axis)
	}

	proc, err := m.processorFor(id)
	if err != nil {
		return nil, err
	}

	res, err := flip(proc)
	if err != nil {
		fmt.Printf("[Process %s] ERROR: flip %s failed: %v\n", id[:8], axis, err)
		return nil, err
	}

	m.mu.Lock()
	if state, ok := m.sessions[id]; ok {
		applyResult(state.Session, res)
	}
	m.mu.Unlock()

	return res, nil
}

// PatternsAt returns the patterns of a session whose outline contains pt.
func (m *Manager) PatternsAt(id string, pt geometry.Point) ([]models.PatternView, error) {
	proc, err := m.processorFor(id)
	if err != nil {
		return nil, err
	}
	return proc.PatternsAt(pt)
}

// NearestPatterns returns up to k patterns of a session closest to pt.
func (m *Manager) NearestPatterns(id string, pt geometry.Point, k int) ([]models.PatternView, error) {
	proc, err := m.processorFor(id)
	if err != nil {
		return nil, err
	}
	return proc.NearestPatterns(pt, k)
}

// DeleteSession clears the session's processor and forgets the session.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.removeLocked(id)
	return true
}

// DeleteSessionsForFile drops every session started from fileID and returns
// how many were removed.
func (m *Manager) DeleteSessionsForFile(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, state := range m.sessions {
		if state.Session.FileID == fileID {
			m.removeLocked(id)
			n++
		}
	}
	return n
}
