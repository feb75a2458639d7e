package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrAlreadyRunning is returned when another instance holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance holds the timetable lock")

// InstanceLock is a session-level advisory lock pinned to one connection.
type InstanceLock struct {
	conn *sql.Conn
	key  int64
}

// AcquireInstanceLock takes the advisory lock without waiting.
func AcquireInstanceLock(ctx context.Context, db *sqlx.DB, key int64) (*InstanceLock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{conn: conn, key: key}, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *InstanceLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	defer func() {
		_ = l.conn.Close()
		l.conn = nil
	}()
	if _, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}
