package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/sqlchef/internal/bundle"
	"github.com/roach88/sqlchef/internal/engine"
)

// Row is one query result record: column name to value.
type Row = engine.Row

// State is the manager's lifecycle state.
type State int

const (
	// StateAbsent means no session exists and none is being built.
	StateAbsent State = iota

	// StateConstructing means a session is being built.
	StateConstructing

	// StateReady means a session is live.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateConstructing:
		return "constructing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is a live engine instance with its open connection.
// The manager publishes a Session only once both are set.
type Session struct {
	ID       string
	Bundle   bundle.Bundle
	Engine   engine.Instance
	Conn     engine.Conn
	OpenedAt time.Time
}

// initKey is the single-flight key shared by every construction.
const initKey = "session"

// Manager owns at most one Session.
//
// Thread-safety: all methods are safe for concurrent use. Construction is
// shared through a single-flight group; the session reference is guarded
// by mu and is only ever swapped whole.
type Manager struct {
	launcher engine.Launcher
	bundles  bundle.Set
	detect   func() bundle.Capabilities
	ids      IDGenerator
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu           sync.Mutex
	session      *Session
	constructing bool

	// joined runs after a caller attaches to the single-flight group.
	// Tests use it to wait for every caller.
	joined func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithBundles sets the bundle set to select from.
// Default: bundle.Defaults().
func WithBundles(set bundle.Set) Option {
	return func(m *Manager) {
		m.bundles = set
	}
}

// WithCapabilities overrides runtime capability detection.
// Default: bundle.Detect.
func WithCapabilities(detect func() bundle.Capabilities) Option {
	return func(m *Manager) {
		m.detect = detect
	}
}

// WithIDGenerator sets the session ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(m *Manager) {
		m.ids = ids
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source for Session.OpenedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager that starts engines through launcher.
// No engine is started until the first EnsureReady, RunQuery, or Exec.
func New(launcher engine.Launcher, opts ...Option) *Manager {
	m := &Manager{
		launcher: launcher,
		bundles:  bundle.Defaults(),
		detect:   bundle.Detect,
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Current returns the live session, or nil. It never starts construction.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.session != nil:
		return StateReady
	case m.constructing:
		return StateConstructing
	default:
		return StateAbsent
	}
}

// EnsureReady returns the live session, building it if needed.
//
// Concurrent callers during construction share the same outcome. The
// construction is detached from ctx so one caller giving up does not fail
// the others; ctx only bounds how long this caller waits.
func (m *Manager) EnsureReady(ctx context.Context) (*Session, error) {
	if s := m.Current(); s != nil {
		return s, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(initKey, func() (any, error) {
		return m.construct(buildCtx)
	})
	if m.joined != nil {
		m.joined()
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// construct runs inside the single-flight group.
func (m *Manager) construct(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	// A construction that finished between Current and DoChan already
	// published a session.
	if m.session != nil {
		s := m.session
		m.mu.Unlock()
		return s, nil
	}
	m.constructing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.constructing = false
		m.mu.Unlock()
	}()

	m.logger.Info("starting engine session")
	s, err := m.build(ctx)
	if err != nil {
		m.logger.Error("engine session failed to start", "error", err)
		return nil, err
	}

	m.mu.Lock()
	m.session = s
	// Callers arriving after a Close must start a new construction rather
	// than join this one.
	m.group.Forget(initKey)
	m.mu.Unlock()

	m.logger.Info("engine session ready", "session", s.ID, "bundle", s.Bundle.Name, "driver", s.Bundle.Driver)
	return s, nil
}

// build selects a bundle, launches the engine, and opens the connection.
// Nothing is kept if any step fails.
func (m *Manager) build(ctx context.Context) (*Session, error) {
	b, err := bundle.Select(m.bundles, m.detect())
	if err != nil {
		return nil, &InitializationError{Stage: StageSelect, Err: err}
	}
	m.logger.Debug("bundle selected", "bundle", b.Name, "driver", b.Driver, "threads", b.Threads)

	inst, err := m.launcher.Launch(ctx, b)
	if err != nil {
		return nil, &InitializationError{Stage: StageLaunch, Bundle: b.Name, Err: err}
	}

	conn, err := inst.Connect(ctx)
	if err != nil {
		// The engine is up but unusable; release it before reporting.
		if termErr := inst.Terminate(ctx); termErr != nil {
			m.warn(&TeardownWarning{Op: "terminate engine", Err: termErr})
		}
		return nil, &InitializationError{Stage: StageConnect, Bundle: b.Name, Err: err}
	}

	return &Session{
		ID:       m.ids.Generate(),
		Bundle:   b,
		Engine:   inst,
		Conn:     conn,
		OpenedAt: m.now(),
	}, nil
}

// Query runs a query and returns the engine's columnar result.
// The session is started on demand. sqlText is passed through untouched.
func (m *Manager) Query(ctx context.Context, sqlText string) (*engine.Table, error) {
	s, err := m.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("running query", "session", s.ID, "sql", sqlText)
	table, err := s.Conn.Query(ctx, sqlText)
	if err != nil {
		return nil, &QueryError{SQL: sqlText, Err: err}
	}
	return table, nil
}

// RunQuery runs a query and returns its rows in engine order.
// A failing query leaves the session Ready.
func (m *Manager) RunQuery(ctx context.Context, sqlText string) ([]Row, error) {
	table, err := m.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	return table.Rows(), nil
}

// Exec runs a statement with bound arguments.
func (m *Manager) Exec(ctx context.Context, sqlText string, args ...any) error {
	s, err := m.EnsureReady(ctx)
	if err != nil {
		return err
	}

	m.logger.Debug("executing statement", "session", s.ID, "sql", sqlText, "args", len(args))
	if err := s.Conn.Exec(ctx, sqlText, args...); err != nil {
		return &QueryError{SQL: sqlText, Err: err}
	}
	return nil
}

// Close releases the live session.
//
// The session reference is cleared before anything is released, so the
// manager is Absent when Close returns even if releasing fails. Failures
// are returned joined, each as a *TeardownWarning. Closing with no session
// is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	return errors.Join(m.teardown(ctx)...)
}

// Reset releases the live session before the engine is pointed at a
// different data source. Unlike Close it never fails: release problems are
// logged as warnings.
func (m *Manager) Reset(ctx context.Context) {
	for _, w := range m.teardown(ctx) {
		m.warn(w)
	}
}

func (m *Manager) teardown(ctx context.Context) []error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	var warnings []error
	if err := s.Conn.Close(ctx); err != nil {
		warnings = append(warnings, &TeardownWarning{Op: "close connection", Err: err})
	}
	if err := s.Engine.Terminate(ctx); err != nil {
		warnings = append(warnings, &TeardownWarning{Op: "terminate engine", Err: err})
	}

	m.logger.Info("engine session closed", "session", s.ID, "warnings", len(warnings))
	return warnings
}

func (m *Manager) warn(err error) {
	var w *TeardownWarning
	if errors.As(err, &w) {
		m.logger.Warn("engine teardown incomplete", "op", w.Op, "error", w.Err)
		return
	}
	m.logger.Warn("engine teardown incomplete", "error", err)
}
