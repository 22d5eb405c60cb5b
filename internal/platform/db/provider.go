package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrUnavailable means no connection to the store could be established.
	ErrUnavailable = errors.New("database unavailable")
	// ErrQueryFailed means the store was reached but the statement failed.
	ErrQueryFailed = errors.New("database query failed")
)

// Provider hands out short-lived connections, one per operation.
// It never retries; callers decide what a failure means for them.
type Provider struct {
	db *sql.DB
}

// Open prepares a Provider for cfg. No connection is made until the first Acquire.
// Idle connections are not kept, so every released connection is closed.
func Open(cfg Config) (*Provider, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(0)
	return New(sqlDB), nil
}

// New wraps an existing handle. Pool tuning is left to the caller.
func New(sqlDB *sql.DB) *Provider {
	return &Provider{db: sqlDB}
}

// DB exposes the handle for tooling that manages its own connections (goose).
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Acquire opens a dedicated connection. The caller must Close it.
func (p *Provider) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return conn, nil
}

// WithConn runs fn on a freshly acquired connection and releases it on every exit path.
func (p *Provider) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(ctx, conn)
}

// Ping performs a minimal round-trip on a new connection.
func (p *Provider) Ping(ctx context.Context) error {
	return p.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var one int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return QueryFailed("ping", err)
		}
		return nil
	})
}

// Close releases the underlying handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// QueryFailed tags err as a statement failure for op, keeping the driver error in the chain.
func QueryFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
}
