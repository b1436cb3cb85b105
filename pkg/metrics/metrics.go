// Package metrics counts chaos activity and exports it in the Prometheus
// text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// TextfileName is the metrics file inside the workspace log directory
const TextfileName = "chaos_runner.prom"

const namespace = "chaos_runner"

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the runner's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// ActionsTotal counts apply and undo attempts by command and result
	ActionsTotal *prometheus.CounterVec

	// ActiveActions is the number of applied but not yet reverted actions
	ActiveActions prometheus.Gauge

	// LastActionTimestamp is the UNIX time of the last apply
	LastActionTimestamp prometheus.Gauge

	// ExpireTimestamp is the UNIX time at which the current run stops
	ExpireTimestamp prometheus.Gauge

	// RunsTotal counts finished runs by final state
	RunsTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Chaos apply and undo attempts by group, command, phase and result",
		}, []string{"group", "command", "phase", "result"}),
		ActiveActions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_actions",
			Help:      "Chaos actions currently applied and awaiting undo",
		}),
		LastActionTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_action_timestamp_seconds",
			Help:      "UNIX time of the most recent chaos apply",
		}),
		ExpireTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expire_timestamp_seconds",
			Help:      "UNIX time at which the current run expires",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by final state",
		}, []string{"state"}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveApply records an apply attempt. Only a successful apply counts as
// active; a failed one has rolled itself back.
func (m *Metrics) ObserveApply(group, command string, at time.Time, err error) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(group, command, "apply", result(err)).Inc()
	m.LastActionTimestamp.Set(float64(at.UnixNano()) / 1e9)
	if err == nil {
		m.ActiveActions.Inc()
	}
}

// ObserveUndo records an undo attempt
func (m *Metrics) ObserveUndo(group, command string, err error) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(group, command, "undo", result(err)).Inc()
	m.ActiveActions.Dec()
}

// ObserveSettled marks an applied one-shot action as no longer active
func (m *Metrics) ObserveSettled() {
	if m == nil {
		return
	}
	m.ActiveActions.Dec()
}

// SetExpiry records the run deadline
func (m *Metrics) SetExpiry(at time.Time) {
	if m == nil {
		return
	}
	m.ExpireTimestamp.Set(float64(at.UnixNano()) / 1e9)
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// WriteTextfile writes every collector to path in the Prometheus text
// format. The file is replaced atomically so a scraping node_exporter never
// reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set metrics file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace metrics file: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
