package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/sqlchef/internal/bundle"
)

// SQLLauncher launches engines through database/sql drivers.
//
// Native bundles use github.com/mattn/go-sqlite3 ("sqlite3"); the portable
// bundle uses modernc.org/sqlite ("sqlite").
type SQLLauncher struct {
	logger *slog.Logger
}

// NewSQLLauncher creates a launcher. A nil logger uses slog.Default().
func NewSQLLauncher(logger *slog.Logger) *SQLLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLLauncher{logger: logger}
}

// Launch starts a worker for the bundle and instantiates the engine on it.
func (l *SQLLauncher) Launch(ctx context.Context, b bundle.Bundle) (Instance, error) {
	w := StartWorker(b.Name, l.logger)

	var db *sqlx.DB
	err := w.Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = instantiate(ctx, b)
		return err
	})
	if err != nil {
		w.Stop()
		// The task may have finished after ctx ended; release what it opened.
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	l.logger.Debug("engine instantiated", "bundle", b.Name, "driver", b.Driver)
	return &sqlInstance{bundle: b, worker: w, db: db}, nil
}

// instantiate opens the bundle's driver and verifies the engine answers.
func instantiate(ctx context.Context, b bundle.Bundle) (*sqlx.DB, error) {
	db, err := sqlx.Open(b.Driver, b.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s engine: %w", b.Driver, err)
	}

	// An in-memory database lives and dies with its connection, so the
	// pool must hand every caller the same one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start %s engine: %w", b.Driver, err)
	}

	return db, nil
}

// applyPragmas configures a fresh connection for the bundle.
func applyPragmas(ctx context.Context, conn *sqlx.Conn, b bundle.Bundle) error {
	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if !b.InMemory() {
		// File-backed engines may share the file with other processes.
		pragmas = append(pragmas, "PRAGMA busy_timeout = 5000")
	}
	if b.Parallelism() {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads = %d", b.Threads))
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

type sqlInstance struct {
	bundle bundle.Bundle
	worker *Worker

	mu sync.Mutex
	db *sqlx.DB // nil once terminated
}

func (i *sqlInstance) handle() *sqlx.DB {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db
}

func (i *sqlInstance) Connect(ctx context.Context) (Conn, error) {
	db := i.handle()
	if db == nil {
		return nil, ErrTerminated
	}

	var conn *sqlx.Conn
	err := i.worker.Do(ctx, func(ctx context.Context) error {
		c, err := db.Connx(ctx)
		if err != nil {
			return fmt.Errorf("failed to open connection: %w", err)
		}
		if err := applyPragmas(ctx, c, i.bundle); err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &sqlConn{worker: i.worker, conn: conn}, nil
}

func (i *sqlInstance) Terminate(ctx context.Context) error {
	i.mu.Lock()
	db := i.db
	i.db = nil
	i.mu.Unlock()

	if db == nil {
		return nil
	}

	// The handle is already detached, so the release must run even if the
	// caller's ctx has ended.
	err := i.worker.Do(context.WithoutCancel(ctx), func(context.Context) error {
		return db.Close()
	})
	i.worker.Stop()
	if err != nil {
		return fmt.Errorf("failed to terminate engine: %w", err)
	}
	return nil
}

type sqlConn struct {
	worker *Worker

	mu   sync.Mutex
	conn *sqlx.Conn // nil once closed
}

func (c *sqlConn) handle() *sqlx.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *sqlConn) Query(ctx context.Context, query string) (*Table, error) {
	conn := c.handle()
	if conn == nil {
		return nil, ErrConnClosed
	}

	var t *Table
	err := c.worker.Do(ctx, func(ctx context.Context) error {
		rows, err := conn.QueryxContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		t, err = collectTable(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	conn := c.handle()
	if conn == nil {
		return ErrConnClosed
	}

	return c.worker.Do(ctx, func(ctx context.Context) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
}

func (c *sqlConn) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := c.worker.Do(context.WithoutCancel(ctx), func(context.Context) error {
		return conn.Close()
	})
	if errors.Is(err, ErrWorkerStopped) {
		// The instance is already gone; release the handle directly.
		return conn.Close()
	}
	return err
}
