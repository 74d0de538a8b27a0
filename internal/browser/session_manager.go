// Package browser drives Chrome through go-rod and exposes each page's
// accessibility tree as axnode handles.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"axquery/internal/axnode"
	"axquery/internal/command"
	"axquery/internal/logging"
)

// ErrUnknownSession is returned for session ids the manager does not track.
var ErrUnknownSession = errors.New("unknown session")

// Session describes the public metadata for a tracked page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `json:"debugger_url"`
	Launch              []string `json:"launch"`
	Headless            bool     `json:"headless"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	SessionStore        string   `json:"session_store"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1280,
		ViewportHeight:      800,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SessionManager owns the Chrome connection and tracks pages by session id.
type SessionManager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	controlURL string // WebSocket URL for DevTools
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*sessionRecord),
	}
}

// Restore loads persisted session metadata without connecting to Chrome.
func (m *SessionManager) Restore() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadSessionsLocked()
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := m.launcher().Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	logging.Browser("Connected to %s", controlURL)
	return nil
}

// launcher builds a Chrome launcher from cfg.Launch: the first element is the
// binary, the rest are flags in --name or --name=value form.
func (m *SessionManager) launcher() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.Headless)
	if len(m.cfg.Launch) == 0 {
		return l
	}
	l = l.Bin(m.cfg.Launch[0])
	for _, rawFlag := range m.cfg.Launch[1:] {
		name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown drops page handles and disconnects. Pages stay open in Chrome so
// a later process can reattach by target id; Close on a launched browser
// takes them down with it.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, record := range m.sessions {
		record.page = nil
		record.meta.Status = "detached"
	}
	b := m.browser
	launched := m.cfg.DebuggerURL == ""
	m.browser = nil
	m.controlURL = ""
	m.mu.Unlock()

	_ = m.persistSessions()
	if b == nil || !launched {
		return nil
	}
	return b.Close()
}

// List returns metadata for all known sessions, oldest first.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results
}

// CreateSession opens a new page and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if url != "" {
		if err := m.navigate(ctx, page, url); err != nil {
			logging.BrowserWarn("initial navigation to %s: %v", url, err)
		}
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Title:      pageTitle(page),
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	m.mu.Unlock()

	_ = m.persistSessions()
	logging.Browser("Session %s created for %s", meta.ID, url)
	return &meta, nil
}

// Attach binds a new session to an existing target by TargetID, such as a tab
// opened by hand in the running browser.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		URL:        pageURL(page),
		Title:      pageTitle(page),
		Status:     "attached",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page}
	m.mu.Unlock()

	_ = m.persistSessions()
	return &meta, nil
}

// Page returns the underlying Rod page for a session, reattaching to its
// target when the session was restored from disk.
func (m *SessionManager) Page(ctx context.Context, sessionID string) (*rod.Page, error) {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	var page *rod.Page
	var targetID string
	if ok {
		page = rec.page
		targetID = rec.meta.TargetID
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if page != nil {
		return page, nil
	}
	if targetID == "" {
		return nil, fmt.Errorf("session %s has no target to reattach", sessionID)
	}
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.page != nil {
		return rec.page, nil
	}
	page, err := m.browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("reattach %s: %w", sessionID, err)
	}
	rec.page = page
	rec.meta.Status = "attached"
	logging.Browser("Session %s reattached to target %s", sessionID, targetID)
	return page, nil
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// Navigate navigates a session to a URL.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	page, err := m.Page(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.navigate(ctx, page, url); err != nil {
		return err
	}
	m.touch(sessionID, func(s Session) Session {
		s.URL = url
		s.Title = pageTitle(page)
		return s
	})
	_ = m.persistSessions()
	logging.Browser("Session %s navigated to %s", sessionID, url)
	return nil
}

func (m *SessionManager) navigate(ctx context.Context, page *rod.Page, url string) error {
	p := page.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return p.WaitLoad()
}

// CloseSession closes the page and forgets the session.
func (m *SessionManager) CloseSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	var err error
	if rec.page != nil {
		err = rec.page.Close()
	}
	_ = m.persistSessions()
	return err
}

// Snapshot captures the current accessibility tree of a session's page.
func (m *SessionManager) Snapshot(ctx context.Context, sessionID string) (*AXTree, error) {
	page, err := m.Page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tree, err := Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	m.touch(sessionID, func(s Session) Session { return s })
	return tree, nil
}

// RootProvider snapshots the session afresh for every command, so each
// command sees the page as it is when the command starts.
func (m *SessionManager) RootProvider(sessionID string) command.RootProvider {
	return command.RootFunc(func(ctx context.Context) (axnode.Node, error) {
		tree, err := m.Snapshot(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return tree.Root(), nil
	})
}

func (m *SessionManager) touch(sessionID string, updater func(Session) Session) {
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s = updater(s)
		s.LastActive = time.Now()
		return s
	})
}

func pageURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func pageTitle(page *rod.Page) string {
	info, err := page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.Title
}

// persistSessions writes session metadata to disk.
func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	sessions := m.List()
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

// loadSessionsLocked loads persisted metadata. Caller must hold lock.
// Sessions already tracked in memory are kept as they are.
func (m *SessionManager) loadSessionsLocked() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionStore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}

	for _, s := range sessions {
		if _, exists := m.sessions[s.ID]; exists {
			continue
		}
		s.Status = "detached"
		m.sessions[s.ID] = &sessionRecord{meta: s, page: nil}
	}
	return nil
}
