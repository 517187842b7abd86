package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/sqlchef/internal/bundle"
	"github.com/roach88/sqlchef/internal/engine"
)

// Responder answers queries sent to a FakeConn.
type Responder func(query string) (*engine.Table, error)

// FakeLauncher is an engine.Launcher for lifecycle tests.
//
// It counts launches, can be made to fail at launch or connect, can hold
// launches behind a gate, and answers queries with a Responder.
//
// Thread-safety: All methods are safe for concurrent use.
type FakeLauncher struct {
	mu           sync.Mutex
	launches     int
	launchErr    error
	connectErr   error
	closeErr     error
	terminateErr error
	gate         chan struct{}
	responder    Responder
	instances    []*FakeInstance
}

// NewFakeLauncher creates a launcher that succeeds and answers every query
// with SelectOneResponder.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{responder: SelectOneResponder}
}

// FailLaunch makes subsequent launches fail with err. Pass nil to clear.
func (l *FakeLauncher) FailLaunch(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launchErr = err
}

// FailConnect makes subsequent connects fail with err. Pass nil to clear.
func (l *FakeLauncher) FailConnect(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connectErr = err
}

// FailClose makes connection release fail with err on later instances.
func (l *FakeLauncher) FailClose(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeErr = err
}

// FailTerminate makes engine termination fail with err on later instances.
func (l *FakeLauncher) FailTerminate(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.terminateErr = err
}

// Respond sets the query responder for later connections.
func (l *FakeLauncher) Respond(r Responder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = r
}

// Hold makes subsequent launches block until the returned release func is
// called (or the launch ctx ends). Release is safe to call more than once.
func (l *FakeLauncher) Hold() (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gate = gate
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.gate == gate {
				l.gate = nil
			}
			l.mu.Unlock()
			close(gate)
		})
	}
}

// Launches returns how many times Launch was called.
func (l *FakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Instances returns every instance launched successfully, in order.
func (l *FakeLauncher) Instances() []*FakeInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*FakeInstance, len(l.instances))
	copy(out, l.instances)
	return out
}

// Launch implements engine.Launcher.
func (l *FakeLauncher) Launch(ctx context.Context, b bundle.Bundle) (engine.Instance, error) {
	l.mu.Lock()
	l.launches++
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.launchErr != nil {
		return nil, l.launchErr
	}

	inst := &FakeInstance{
		Bundle:       b,
		connectErr:   l.connectErr,
		closeErr:     l.closeErr,
		terminateErr: l.terminateErr,
		responder:    l.responder,
	}
	l.instances = append(l.instances, inst)
	return inst, nil
}

// FakeInstance is an engine.Instance created by FakeLauncher.
type FakeInstance struct {
	Bundle bundle.Bundle

	mu           sync.Mutex
	terminated   bool
	connectErr   error
	closeErr     error
	terminateErr error
	responder    Responder
	conns        []*FakeConn
}

// Terminated reports whether Terminate was called.
func (i *FakeInstance) Terminated() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.terminated
}

// Conns returns the connections opened on this instance.
func (i *FakeInstance) Conns() []*FakeConn {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*FakeConn, len(i.conns))
	copy(out, i.conns)
	return out
}

// Connect implements engine.Instance.
func (i *FakeInstance) Connect(context.Context) (engine.Conn, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.terminated {
		return nil, engine.ErrTerminated
	}
	if i.connectErr != nil {
		return nil, i.connectErr
	}

	conn := &FakeConn{closeErr: i.closeErr, responder: i.responder}
	i.conns = append(i.conns, conn)
	return conn, nil
}

// Terminate implements engine.Instance. The instance counts as terminated
// even when it reports an error.
func (i *FakeInstance) Terminate(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.terminated {
		return nil
	}
	i.terminated = true
	return i.terminateErr
}

// FakeConn is an engine.Conn created by FakeInstance.
type FakeConn struct {
	mu        sync.Mutex
	closed    bool
	closeErr  error
	responder Responder
	queries   []string
	execs     []string
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Queries returns the queries received, in order.
func (c *FakeConn) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// Execs returns the statements executed, in order.
func (c *FakeConn) Execs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...)
}

// Query implements engine.Conn.
func (c *FakeConn) Query(_ context.Context, query string) (*engine.Table, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, engine.ErrConnClosed
	}
	c.queries = append(c.queries, query)
	respond := c.responder
	c.mu.Unlock()

	return respond(query)
}

// Exec implements engine.Conn.
func (c *FakeConn) Exec(_ context.Context, query string, _ ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return engine.ErrConnClosed
	}
	c.execs = append(c.execs, query)
	return nil
}

// Close implements engine.Conn. The connection counts as closed even when
// it reports an error.
func (c *FakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.closeErr
}

// ParseError is what SelectOneResponder returns for queries that do not
// start with SELECT.
type ParseError struct {
	Query string
}

func (e *ParseError) Error() string {
	word, _, _ := strings.Cut(strings.TrimSpace(e.Query), " ")
	return `Parser Error: syntax error at or near "` + word + `"`
}

// SelectOneResponder answers any SELECT with a one-row table {x: 1} and
// rejects everything else with a ParseError.
func SelectOneResponder(query string) (*engine.Table, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT ") {
		return nil, &ParseError{Query: query}
	}
	return &engine.Table{
		Columns: []engine.Column{{Name: "x", Type: "INTEGER", Values: []any{int64(1)}}},
		NumRows: 1,
	}, nil
}
