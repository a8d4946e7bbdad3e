package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/evaluator/internal/api/shared"
)

const (
	// APIKeyHeader is the primary header carrying the API key.
	APIKeyHeader = "X-API-Key"

	apiKeyScheme = "ApiKey "
)

// APIKeyMiddleware gates routes behind a shared API key.
type APIKeyMiddleware struct {
	key    []byte
	logger *slog.Logger
}

// NewAPIKeyMiddleware creates the gate for key. An empty key disables it.
func NewAPIKeyMiddleware(key string, logger *slog.Logger) *APIKeyMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		logger.Warn("API key not configured, evaluation routes are unauthenticated")
	}
	return &APIKeyMiddleware{key: []byte(key), logger: logger}
}

// Enabled reports whether requests must present a key.
func (m *APIKeyMiddleware) Enabled() bool {
	return len(m.key) > 0
}

// Authenticate rejects requests without the configured key with 401.
// The key is read from X-API-Key, or from "Authorization: ApiKey <key>".
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		provided := providedKey(r)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), m.key) != 1 {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Invalid or missing API key", nil, shared.WithElevatedLogLevel())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func providedKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, apiKeyScheme) {
		return strings.TrimPrefix(auth, apiKeyScheme)
	}
	return ""
}
