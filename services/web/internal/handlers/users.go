package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/containerlab/internal/platform/api"
	"github.com/example/containerlab/internal/platform/db"
	"github.com/example/containerlab/internal/platform/events"
	"github.com/example/containerlab/internal/platform/httpserver"
	"github.com/example/containerlab/services/web/internal/store"
)

const (
	maxUsernameLen = 50
	maxEmailLen    = 100
	maxBodyBytes   = 1 << 20
)

var errTrailingData = errors.New("unexpected data after JSON object")

type createUserRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

type listUsersResponse struct {
	Count int          `json:"count"`
	Users []store.User `json:"users"`
}

// validate trims the payload and reports field problems before any store access.
func (req createUserRequest) validate() (store.CreateUserParams, map[string]any) {
	p := store.CreateUserParams{Username: strings.TrimSpace(req.Username)}
	problems := map[string]any{}

	switch {
	case p.Username == "":
		problems["username"] = "username is required"
	case utf8.RuneCountInString(p.Username) > maxUsernameLen:
		problems["username"] = "username must be at most 50 characters"
	}

	if req.Email != nil {
		if email := strings.TrimSpace(*req.Email); email != "" {
			if utf8.RuneCountInString(email) > maxEmailLen {
				problems["email"] = "email must be at most 100 characters"
			}
			p.Email = &email
		}
	}
	return p, problems
}

// decodeBody reads exactly one JSON value. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	switch err := dec.Decode(&struct{}{}); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errTrailingData
	}
}

// ListUsers handles GET /users
func ListUsers(us store.UserStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		log := httpserver.LoggerFrom(r.Context(), log)

		users, err := us.List(r.Context())
		if err != nil {
			log.Error("list users failed", zap.Error(err))
			switch {
			case errors.Is(err, db.ErrUnavailable):
				api.Unavailable(w, "DB_UNAVAILABLE", "database connection failed", rid)
			case errors.Is(err, db.ErrQueryFailed):
				api.Unavailable(w, "DB_QUERY_FAILED", "database query failed", rid)
			default:
				api.Internal(w, rid)
			}
			return
		}

		log.Debug("users fetched", zap.Int("count", len(users)))
		api.WriteJSON(w, http.StatusOK, listUsersResponse{Count: len(users), Users: users})
	}
}

// CreateUser handles POST /users
func CreateUser(us store.UserStore, pub *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		log := httpserver.LoggerFrom(r.Context(), log)

		var req createUserRequest
		// An empty body is treated as an empty object so it fails field validation.
		if err := decodeBody(w, r, &req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				api.PayloadTooLarge(w, tooLarge.Limit, rid)
				return
			}
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		params, problems := req.validate()
		if len(problems) > 0 {
			api.BadRequest(w, "VALIDATION_FAILED", "invalid user payload", rid, problems)
			return
		}

		u, err := us.Create(r.Context(), params)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				log.Info("username conflict", zap.String("username", params.Username))
				api.Conflict(w, "USERNAME_TAKEN", "username already exists", rid, map[string]any{"username": params.Username})
			case errors.Is(err, db.ErrUnavailable):
				log.Error("create user failed", zap.Error(err))
				api.Unavailable(w, "DB_UNAVAILABLE", "database connection failed", rid)
			default:
				log.Error("create user failed", zap.Error(err))
				api.Internal(w, rid)
			}
			return
		}

		pub.Publish(events.SubjectUserCreated, "user_created", map[string]any{
			"id":       u.ID,
			"username": u.Username,
		})
		log.Info("user created", zap.Int64("id", u.ID))
		api.WriteJSON(w, http.StatusCreated, u)
	}
}
