package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// StateDir holds genline's durable state inside a workspace.
	StateDir = ".genline"
	fileName = "genline.db"

	defaultBusyTimeout = 5 * time.Second
)

// Config locates the plan store. BusyTimeout bounds how long a writer waits
// on a locked database before failing.
type Config struct {
	Workspace   string
	BusyTimeout time.Duration
}

// Path is where the plan store lives for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, StateDir, fileName)
}

func (c Config) dsn() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		Path(c.Workspace), timeout.Milliseconds())
}

// Open opens the plan store, creating the state directory on first use.
// Plan writes from concurrent requests and the event log share one
// connection so sqlite never sees two writers.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(Path(cfg.Workspace)), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", Path(cfg.Workspace), err)
	}
	return conn, nil
}
