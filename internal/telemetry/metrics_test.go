package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TaskStarted()
	m.TaskStarted()
	if got := testutil.ToFloat64(m.tasksRunning); got != 2 {
		t.Errorf("expected 2 running, got %v", got)
	}

	m.TaskFinished("analyzer", 10*time.Millisecond)
	if got := testutil.ToFloat64(m.tasksRunning); got != 1 {
		t.Errorf("expected 1 running, got %v", got)
	}

	m.TaskResult("COMPLETED")
	m.TaskResult("COMPLETED")
	m.TaskResult("FAILED")
	if got := testutil.ToFloat64(m.tasksTotal.WithLabelValues("COMPLETED")); got != 2 {
		t.Errorf("expected 2 completed, got %v", got)
	}

	m.RunFinished("SEQUENTIAL", "ABORTED")
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("SEQUENTIAL", "ABORTED")); got != 1 {
		t.Errorf("expected 1 aborted run, got %v", got)
	}

	m.Fallback()
	if got := testutil.ToFloat64(m.fallbacks); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}

	if count := testutil.CollectAndCount(m.taskDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.TaskStarted()
	m.TaskFinished("x", time.Second)
	m.TaskResult("FAILED")
	m.RunFinished("CONCURRENT", "COMPLETED")
	m.Fallback()
}
