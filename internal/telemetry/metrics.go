package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики оркестратора.
//
// Все методы безопасны для nil-получателя: компоненты, созданные
// без метрик (тесты, CLI), просто ничего не записывают.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	tasksRunning prometheus.Gauge
	fallbacks    prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// nil reg — prometheus.DefaultRegisterer (его отдаёт promhttp.Handler).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_runs_total",
			Help: "Total runs by strategy and overall status",
		}, []string{"strategy", "status"}),

		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_tasks_total",
			Help: "Total task executions by final status",
		}, []string{"status"}),

		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_task_duration_seconds",
			Help:    "Task handler duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),

		tasksRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conductor_tasks_running",
			Help: "Task handlers currently running",
		}),

		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "conductor_fallbacks_total",
			Help: "Concurrent runs retried sequentially after an orchestration fault",
		}),
	}
}

// TaskStarted отмечает запуск handler'а.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksRunning.Inc()
}

// TaskFinished отмечает завершение handler'а.
func (m *Metrics) TaskFinished(task string, took time.Duration) {
	if m == nil {
		return
	}
	m.tasksRunning.Dec()
	m.taskDuration.WithLabelValues(task).Observe(took.Seconds())
}

// TaskResult учитывает финальный статус задачи.
func (m *Metrics) TaskResult(status string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(strategy, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(strategy, status).Inc()
}

// Fallback учитывает переход на последовательное выполнение.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}
