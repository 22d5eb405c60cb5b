package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrConflict is returned when a username is already taken.
var ErrConflict = errors.New("username already exists")

// User is the only persisted entity. Rows are never updated or deleted here.
type User struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Email     *string         `json:"email"`
	Profile   json.RawMessage `json:"profile,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type CreateUserParams struct {
	Username string
	Email    *string
}

// UserStore defines the contract for user persistence.
type UserStore interface {
	// List returns every user ordered by id ascending.
	List(ctx context.Context) ([]User, error)
	// Create inserts exactly one row and returns it with its assigned id.
	Create(ctx context.Context, p CreateUserParams) (User, error)
}
