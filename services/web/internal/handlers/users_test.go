package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/containerlab/internal/platform/api"
	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/internal/platform/httpserver"
	"github.com/example/containerlab/services/web/internal/store"
)

// stubStore counts calls and fails with err when set.
type stubStore struct {
	err     error
	lists   int
	creates int
}

func (s *stubStore) List(context.Context) ([]store.User, error) {
	s.lists++
	return nil, s.err
}

func (s *stubStore) Create(_ context.Context, p store.CreateUserParams) (store.User, error) {
	s.creates++
	if s.err != nil {
		return store.User{}, s.err
	}
	return store.User{ID: 1, Username: p.Username, Email: p.Email}, nil
}

func postUser(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func getUsers(h http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

func TestCreateUser(t *testing.T) {
	us := store.NewInMemoryUserStore()
	rr := postUser(CreateUser(us, nil, zap.NewNop()), `{"username":"alice"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var raw map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["id"] != float64(1) || raw["username"] != "alice" {
		t.Fatalf("unexpected body %v", raw)
	}
	if v, ok := raw["email"]; !ok || v != nil {
		t.Fatalf("expected explicit null email, got %v (present=%v)", v, ok)
	}
}

func TestCreateUser_TrimsAndKeepsEmail(t *testing.T) {
	us := store.NewInMemoryUserStore()
	rr := postUser(CreateUser(us, nil, zap.NewNop()), `{"username":"  bob ","email":" bob@example.com "}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var u store.User
	if err := json.NewDecoder(rr.Body).Decode(&u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Username != "bob" || u.Email == nil || *u.Email != "bob@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestCreateUser_ValidationBeforeStore(t *testing.T) {
	cases := map[string]string{
		"missing username": `{"email":"x@example.com"}`,
		"empty username":   `{"username":""}`,
		"blank username":   `{"username":"   "}`,
		"empty body":       ``,
		"long username":    fmt.Sprintf(`{"username":%q}`, strings.Repeat("a", 51)),
		"long email":       fmt.Sprintf(`{"username":"alice","email":%q}`, strings.Repeat("e", 101)),
		"malformed json":   `{"username":`,
		"wrong type":       `{"username":42}`,
		"trailing junk":    `{"username":"alice"} junk`,
		"second object":    `{"username":"alice"}{"username":"bob"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			us := &stubStore{}
			rr := postUser(CreateUser(us, nil, zap.NewNop()), body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if us.creates != 0 {
				t.Fatal("store must not be called for invalid input")
			}
		})
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	us := store.NewInMemoryUserStore()
	h := CreateUser(us, nil, zap.NewNop())

	if rr := postUser(h, `{"username":"alice"}`); rr.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", rr.Code)
	}
	rr := postUser(h, `{"username":"alice","email":"a@example.com"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "USERNAME_TAKEN" {
		t.Fatalf("unexpected code %q", e.Code)
	}

	users, _ := us.List(context.Background())
	if len(users) != 1 {
		t.Fatalf("conflict must leave no row, got %d users", len(users))
	}
}

func TestCreateUser_StoreFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", fmt.Errorf("%w: connection refused", db.ErrUnavailable), http.StatusServiceUnavailable},
		{"query failed", db.QueryFailed("insert user", fmt.Errorf("disk full")), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			us := &stubStore{err: tc.err}
			rr := postUser(CreateUser(us, nil, zap.NewNop()), `{"username":"alice"}`)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if us.creates != 1 {
				t.Fatalf("expected exactly one store call, got %d", us.creates)
			}
			if strings.Contains(rr.Body.String(), "connection refused") || strings.Contains(rr.Body.String(), "disk full") {
				t.Fatalf("driver detail leaked: %s", rr.Body.String())
			}
		})
	}
}

func TestListUsers_Empty(t *testing.T) {
	rr := getUsers(ListUsers(store.NewInMemoryUserStore(), zap.NewNop()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"count":0,"users":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestListUsers_AfterCreates(t *testing.T) {
	us := store.NewInMemoryUserStore()
	create := CreateUser(us, nil, zap.NewNop())
	list := ListUsers(us, zap.NewNop())

	var lastID int64
	for i, name := range []string{"alice", "bob", "carol"} {
		postUser(create, fmt.Sprintf(`{"username":%q}`, name))

		var resp listUsersResponse
		if err := json.NewDecoder(getUsers(list).Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != i+1 || len(resp.Users) != i+1 {
			t.Fatalf("expected %d users, got count=%d len=%d", i+1, resp.Count, len(resp.Users))
		}
		newest := resp.Users[len(resp.Users)-1]
		if newest.Username != name {
			t.Fatalf("expected %q last, got %q", name, newest.Username)
		}
		if newest.ID <= lastID {
			t.Fatalf("ids must strictly increase: %d after %d", newest.ID, lastID)
		}
		lastID = newest.ID
	}
}

func TestListUsers_StoreFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"unavailable", fmt.Errorf("%w: timeout", db.ErrUnavailable), "DB_UNAVAILABLE"},
		{"query failed", db.QueryFailed("list users", fmt.Errorf("relation missing")), "DB_QUERY_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := getUsers(ListUsers(&stubStore{err: tc.err}, zap.NewNop()))

			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, e.Code)
			}
		})
	}
}

func TestCreateUser_TrailingWhitespaceAccepted(t *testing.T) {
	rr := postUser(CreateUser(store.NewInMemoryUserStore(), nil, zap.NewNop()), "{\"username\":\"alice\"}\n  ")

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateUser_BodyTooLarge(t *testing.T) {
	us := &stubStore{}
	body := `{"username":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rr := postUser(CreateUser(us, nil, zap.NewNop()), body)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("unexpected code %q", e.Code)
	}
	if us.creates != 0 {
		t.Fatal("store must not be called for an oversized body")
	}
}

func TestCreateUser_LogLinesCarryRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	us := store.NewInMemoryUserStore()
	h := httpserver.RequestIDMiddleware("X-Request-Id")(httpserver.AccessLog(log)(CreateUser(us, nil, log)))

	postUser(h, `{"username":"alice"}`)
	postUser(h, `{"username":"alice"}`)

	for _, msg := range []string{"user created", "username conflict"} {
		entries := logs.FilterMessage(msg).All()
		if len(entries) != 1 {
			t.Fatalf("expected one %q entry, got %d", msg, len(entries))
		}
		f := entries[0].ContextMap()
		if f["method"] != "POST" || f["path"] != "/users" {
			t.Fatalf("%q lacks method/path: %v", msg, f)
		}
		if id, _ := f["request_id"].(string); id == "" {
			t.Fatalf("%q lacks request_id: %v", msg, f)
		}
	}
}
