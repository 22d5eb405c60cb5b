package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/containerlab/internal/platform/db"
)

const uniqueViolation = "23505"

// PostgresUserStore runs every statement on its own short-lived connection.
type PostgresUserStore struct {
	provider *db.Provider
}

func NewPostgresUserStore(p *db.Provider) *PostgresUserStore {
	return &PostgresUserStore{provider: p}
}

func (s *PostgresUserStore) List(ctx context.Context) ([]User, error) {
	// to_jsonb(u) reads profile whether or not the profile revision has been applied.
	const q = `SELECT u.id, u.username, u.email, u.created_at, to_jsonb(u) -> 'profile'
	           FROM users u
	           ORDER BY u.id`

	out := []User{}
	err := s.provider.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return db.QueryFailed("list users", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u User
			var email sql.NullString
			var profile []byte
			if err := rows.Scan(&u.ID, &u.Username, &email, &u.CreatedAt, &profile); err != nil {
				return db.QueryFailed("scan user", err)
			}
			if email.Valid {
				u.Email = &email.String
			}
			if len(profile) > 0 && string(profile) != "null" {
				u.Profile = profile
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			return db.QueryFailed("list users", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, p CreateUserParams) (User, error) {
	const q = `INSERT INTO users (username, email)
	           VALUES ($1, $2)
	           RETURNING id, created_at`

	u := User{Username: p.Username, Email: p.Email}
	err := s.provider.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, q, p.Username, nullableString(p.Email)).Scan(&u.ID, &u.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", ErrConflict, p.Username)
			}
			return db.QueryFailed("insert user", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
