package metrics

import (
	"time"

	"flowrun/internal"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowrun"

// Recorder holds the run metrics of one process on its own registry. A nil Recorder
// discards everything.
type Recorder struct {
	registry *prometheus.Registry

	RunsTotal             *prometheus.CounterVec
	ValidationIssuesTotal *prometheus.CounterVec
	RunDurationSeconds    *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of workflow runs, labeled by mode and final state.",
			},
			[]string{"workflow", "mode", "state"},
		),
		ValidationIssuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_issues_total",
				Help:      "Total number of parameter validation issues, labeled by kind.",
			},
			[]string{"workflow", "kind"},
		),
		RunDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Time from output directory creation to run resolution (seconds).",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"workflow", "mode"},
		),
	}
	r.registry.MustRegister(r.RunsTotal, r.ValidationIssuesTotal, r.RunDurationSeconds)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func Mode(background bool) string {
	if background {
		return "background"
	}
	return "foreground"
}

// ObserveRun records a run that reached the execution stage.
func (r *Recorder) ObserveRun(workflow string, background bool, state internal.RunState, d time.Duration) {
	if r == nil {
		return
	}
	mode := Mode(background)
	r.RunsTotal.WithLabelValues(workflow, mode, string(state)).Inc()
	r.RunDurationSeconds.WithLabelValues(workflow, mode).Observe(d.Seconds())
}

func (r *Recorder) ObserveIssues(workflow string, issues []internal.Issue) {
	if r == nil {
		return
	}
	for _, is := range issues {
		r.ValidationIssuesTotal.WithLabelValues(workflow, string(is.Kind)).Inc()
	}
}

// WriteFile dumps the registry in the text exposition format, for node_exporter's
// textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
