package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryUserStore is a development-only implementation (STORE_BACKEND=memory).
type InMemoryUserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  []User
	byName map[string]struct{}
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		nextID: 1,
		byName: make(map[string]struct{}),
	}
}

func (s *InMemoryUserStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *InMemoryUserStore) Create(_ context.Context, p CreateUserParams) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[p.Username]; taken {
		return User{}, fmt.Errorf("%w: %s", ErrConflict, p.Username)
	}
	u := User{
		ID:        s.nextID,
		Username:  p.Username,
		CreatedAt: time.Now().UTC(),
	}
	if p.Email != nil {
		email := *p.Email
		u.Email = &email
	}
	s.nextID++
	s.users = append(s.users, u)
	s.byName[p.Username] = struct{}{}
	return u, nil
}
