// Package schema applies the idempotent revisions of the users table.
//
// Every revision's Up section must be safe to run any number of times
// (IF NOT EXISTS / IF EXISTS guards), so the same files serve both the
// startup check of the web service and the standalone migrator.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/services/web/internal/schema/migrations"
)

// BaseRevision creates the users table.
const BaseRevision = "create_users"

var (
	ErrStepFailed      = errors.New("migration step failed")
	ErrUnknownRevision = errors.New("unknown schema revision")
)

// StepError names the revision whose transaction was rolled back.
type StepError struct {
	Revision string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration step %s failed: %v", e.Revision, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

// Revision is one embedded migration file.
type Revision struct {
	Version int64
	Name    string
	File    string
	Up      string
}

// Stem is the file name without extension, e.g. 00002_add_user_profile.
func (r Revision) Stem() string {
	return strings.TrimSuffix(r.File, path.Ext(r.File))
}

// migrator is the subset of goose.Provider used here.
type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
}

var newMigrator = func(sqlDB *sql.DB, fsys fs.FS) (migrator, error) {
	return goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
}

type Manager struct {
	provider  *db.Provider
	revisions []Revision
	log       *zap.Logger
}

func NewManager(p *db.Provider, log *zap.Logger) (*Manager, error) {
	revs, err := LoadRevisions(migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Manager{provider: p, revisions: revs, log: log}, nil
}

// Revisions lists known revisions in version order.
func (m *Manager) Revisions() []Revision {
	out := make([]Revision, len(m.revisions))
	copy(out, m.revisions)
	return out
}

// Lookup resolves a revision by name (add_user_profile) or file stem (00002_add_user_profile).
func (m *Manager) Lookup(id string) (Revision, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), ".sql")
	for _, r := range m.revisions {
		if r.Name == id || r.Stem() == id {
			return r, nil
		}
	}
	return Revision{}, fmt.Errorf("%w: %q", ErrUnknownRevision, id)
}

// EnsureBaseSchema creates the users table if it is missing.
func (m *Manager) EnsureBaseSchema(ctx context.Context) error {
	return m.ApplyRevision(ctx, BaseRevision)
}

// ApplyRevision runs one revision in its own transaction. A failed statement
// is rolled back and reported as *StepError. It is never retried here.
func (m *Manager) ApplyRevision(ctx context.Context, id string) error {
	rev, err := m.Lookup(id)
	if err != nil {
		return err
	}

	err = m.provider.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return &StepError{Revision: rev.Name, Err: db.QueryFailed("begin", err)}
		}
		if _, err := tx.ExecContext(ctx, rev.Up); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.log.Warn("rollback failed", zap.String("revision", rev.Name), zap.Error(rbErr))
			}
			return &StepError{Revision: rev.Name, Err: db.QueryFailed("apply", err)}
		}
		if err := tx.Commit(); err != nil {
			return &StepError{Revision: rev.Name, Err: db.QueryFailed("commit", err)}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info("schema revision applied", zap.String("revision", rev.Name), zap.Int64("version", rev.Version))
	return nil
}

// Up applies every pending revision through goose, which records progress in
// goose_db_version and runs each file in its own transaction.
func (m *Manager) Up(ctx context.Context) error {
	mg, err := newMigrator(m.provider.DB(), migrations.FS)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := mg.Up(ctx)
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		m.log.Info("schema revision applied",
			zap.String("revision", path.Base(r.Source.Path)),
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration))
	}
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) && partial.Failed != nil && partial.Failed.Source != nil {
			name := path.Base(partial.Failed.Source.Path)
			return &StepError{Revision: strings.TrimSuffix(name, path.Ext(name)), Err: partial.Err}
		}
		return err
	}
	if len(results) == 0 {
		m.log.Info("schema up to date")
	}
	return nil
}

// Status reports the goose view of every revision.
func (m *Manager) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	mg, err := newMigrator(m.provider.DB(), migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return mg.Status(ctx)
}

// LoadRevisions reads NNNNN_name.sql files from fsys in version order.
func LoadRevisions(fsys fs.FS) ([]Revision, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	revs := make([]Revision, 0, len(files))
	seen := make(map[int64]string, len(files))
	for _, f := range files {
		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		rev, err := parseRevision(f, body)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[rev.Version]; dup {
			return nil, fmt.Errorf("revision version %d used by %s and %s", rev.Version, prev, f)
		}
		seen[rev.Version] = f
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].Version < revs[j].Version })
	return revs, nil
}

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

func parseRevision(file string, body []byte) (Revision, error) {
	stem := strings.TrimSuffix(file, path.Ext(file))
	num, name, ok := strings.Cut(stem, "_")
	if !ok || name == "" {
		return Revision{}, fmt.Errorf("%s: expected NNNNN_name.sql", file)
	}
	version, err := strconv.ParseInt(num, 10, 64)
	if err != nil || version <= 0 {
		return Revision{}, fmt.Errorf("%s: invalid version %q", file, num)
	}

	_, rest, ok := strings.Cut(string(body), upMarker)
	if !ok {
		return Revision{}, fmt.Errorf("%s: missing %q", file, upMarker)
	}
	up, _, _ := strings.Cut(rest, downMarker)
	up = strings.TrimSpace(up)
	if up == "" {
		return Revision{}, fmt.Errorf("%s: empty up section", file)
	}
	return Revision{Version: version, Name: name, File: file, Up: up}, nil
}
