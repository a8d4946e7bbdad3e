package worker

import (
	"time"

	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records worker outcomes for Prometheus. It implements
// queue.Observer.
type Metrics struct {
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the worker collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Jobs handled by the worker, by job name and outcome.",
		}, []string{"job_name", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evaluator",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Time spent handling a job, by job name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_name"}),
	}

	for _, c := range []prometheus.Collector{m.jobs, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

var _ queue.Observer = (*Metrics)(nil)

// ObserveJob implements queue.Observer.
func (m *Metrics) ObserveJob(job *queue.Job, outcome queue.Outcome, elapsed time.Duration) {
	m.jobs.WithLabelValues(job.Name, string(outcome)).Inc()
	// Jobs failed by the stalled sweep report no elapsed time.
	if outcome != queue.OutcomeSkipped && elapsed > 0 {
		m.duration.WithLabelValues(job.Name).Observe(elapsed.Seconds())
	}
}
