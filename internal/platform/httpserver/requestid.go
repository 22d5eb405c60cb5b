package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader   = "X-Request-Id"
	maxInboundIDBytes = 128
)

type ctxKeyRequestID struct{}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// RequestIDMiddleware keeps a caller supplied id when it is short printable
// ASCII, otherwise it mints a UUID. The id is echoed in the response header.
func RequestIDMiddleware(headerName string) func(next http.Handler) http.Handler {
	if strings.TrimSpace(headerName) == "" {
		headerName = requestIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid, ok := inboundRequestID(r.Header.Get(headerName))
			if !ok {
				rid = uuid.NewString()
			}
			w.Header().Set(headerName, rid)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID{}, rid)))
		})
	}
}

// inboundRequestID rejects ids that would bloat or corrupt log lines.
func inboundRequestID(raw string) (string, bool) {
	rid := strings.TrimSpace(raw)
	if rid == "" || len(rid) > maxInboundIDBytes {
		return "", false
	}
	for i := 0; i < len(rid); i++ {
		if c := rid[i]; c < 0x21 || c > 0x7e {
			return "", false
		}
	}
	return rid, true
}
