package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderCorrelationID is the header a caller may set to propagate its own
// correlation ID into this service; CorrelationID always echoes it back,
// generated or not.
const HeaderCorrelationID = "X-Correlation-ID"

// ctxKey is an unexported int rather than a string so this package's
// context values can never collide with a key some other package's
// middleware happens to pick.
type ctxKey int

const correlationIDKey ctxKey = 0

// CorrelationID assigns every request a correlation ID — the caller's own
// HeaderCorrelationID value if it sent one, otherwise a freshly generated
// UUID — attaches it to the request context for GetCorrelationID and
// RequestLogger to read, and echoes it in the response header so a caller
// can always tie its request back to server-side logs.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey, id)))
	})
}

// GetCorrelationID returns the ID CorrelationID attached to ctx, or "" if
// the middleware was never applied.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
