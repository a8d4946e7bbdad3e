package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"
)

// ContextKey is the type of request-scoped values set by the API layer.
type ContextKey string

const (
	// TraceIDKey holds the trace ID of the current request.
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries a caller-supplied trace ID and echoes it back.
	TraceIDHeader = "X-Trace-ID"

	// TraceIDLength is the number of random bytes in a generated trace ID.
	TraceIDLength = 16
)

var (
	validTraceID   = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)
	fallbackSerial atomic.Uint64
)

// SetTraceID stores a freshly generated trace ID in ctx.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, generateTraceID())
}

// WithTraceID stores id in ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID returns the trace ID in ctx, or "" when none is set.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// AcceptTraceID reports whether a caller-supplied trace ID is safe to
// propagate into logs and responses.
func AcceptTraceID(id string) bool {
	return validTraceID.MatchString(id)
}

// generateTraceID returns 32 hex characters. If crypto/rand fails it falls
// back to a time and counter based ID, which is unique but guessable.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	id := strconv.FormatInt(time.Now().UnixNano(), 16) + strconv.FormatUint(fallbackSerial.Add(1), 16)
	for len(id) < 2*TraceIDLength {
		id = "0" + id
	}
	return id[len(id)-2*TraceIDLength:]
}
