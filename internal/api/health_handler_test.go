package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/evaluator/internal/health"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		report         health.Report
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "ok",
			report:         health.Report{Status: health.StatusOK, Database: health.Up, Queue: health.Up, Time: now},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok","database":"up","queue":"up","time":"2024-05-01T12:00:00Z"}`,
		},
		{
			name:           "degraded",
			report:         health.Report{Status: health.StatusDegraded, Database: health.Up, Queue: health.Down, Time: now},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"degraded","database":"up","queue":"down","time":"2024-05-01T12:00:00Z"}`,
		},
		{
			name:           "down",
			report:         health.Report{Status: health.StatusDown, Database: health.Down, Queue: health.Down, Time: now},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"down","database":"down","queue":"down","time":"2024-05-01T12:00:00Z"}`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := NewHealthHandler(staticReporter(tc.report))
			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestRouterMountsMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("evaluator_worker_jobs_total 0\n"))
	})
	router := NewRouter(RouterConfig{
		Evaluations: NewEvaluationHandler(&mockEvaluationService{}, nil),
		Health:      NewHealthHandler(staticReporter{Status: health.StatusOK}),
		Metrics:     metrics,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evaluator_worker_jobs_total")
}
