// Package config читает настройки сервиса из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config — настройки conductor-server.
type Config struct {
	// Port — порт HTTP API (CONDUCTOR_PORT, default: 8080).
	Port string

	// DatabaseURL — строка подключения PostgreSQL (DB_URL).
	// Пусто — итоги хранятся только в памяти.
	DatabaseURL string

	// RabbitMQURL — адрес RabbitMQ (RABBITMQ_URL).
	// Пусто — очередь runs.requested не слушается.
	RabbitMQURL string

	// MaxWorkers — верхняя граница пула воркеров (MAX_WORKERS, default: 10).
	MaxWorkers int

	// AdmissionWeights — файл весов admission control, YAML или HCL (ADMISSION_WEIGHTS).
	AdmissionWeights string

	// AdmissionThreshold — переопределяет порог из весов (ADMISSION_THRESHOLD).
	// 0 — порог из весов.
	AdmissionThreshold float64

	// PipelineManifest — YAML-манифест дополнительных задач (PIPELINE_MANIFEST).
	PipelineManifest string

	// PipelineLatency — имитация длительности задач встроенного пайплайна (PIPELINE_LATENCY).
	PipelineLatency time.Duration

	// Schedule — cron-выражение запуска по расписанию (RUN_SCHEDULE).
	Schedule string

	// ScheduleTasks — задачи запуска по расписанию (SCHEDULE_TASKS, через запятую).
	ScheduleTasks []string

	// ScheduleDescription — описание запросов расписания (SCHEDULE_DESCRIPTION).
	ScheduleDescription string

	// ScheduleTimezone — часовой пояс cron (SCHEDULE_TZ, default: UTC).
	ScheduleTimezone string

	// HistorySize — сколько итогов хранится в памяти (HISTORY_SIZE, default: 100).
	HistorySize int

	// ShutdownTimeout — время на graceful shutdown (SHUTDOWN_TIMEOUT, default: 10s).
	ShutdownTimeout time.Duration
}

// Load читает Config из окружения.
func Load() (Config, error) {
	return load(os.Getenv)
}

// load читает Config через getenv.
func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:                stringOr(getenv("CONDUCTOR_PORT"), "8080"),
		DatabaseURL:         getenv("DB_URL"),
		RabbitMQURL:         getenv("RABBITMQ_URL"),
		AdmissionWeights:    getenv("ADMISSION_WEIGHTS"),
		PipelineManifest:    getenv("PIPELINE_MANIFEST"),
		Schedule:            strings.TrimSpace(getenv("RUN_SCHEDULE")),
		ScheduleTasks:       splitList(getenv("SCHEDULE_TASKS")),
		ScheduleDescription: stringOr(getenv("SCHEDULE_DESCRIPTION"), "scheduled run"),
		ScheduleTimezone:    stringOr(getenv("SCHEDULE_TZ"), "UTC"),
	}

	var err error
	if cfg.MaxWorkers, err = intOr(getenv, "MAX_WORKERS", 10); err != nil {
		return Config{}, err
	}
	if cfg.HistorySize, err = intOr(getenv, "HISTORY_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.AdmissionThreshold, err = floatOr(getenv, "ADMISSION_THRESHOLD", 0); err != nil {
		return Config{}, err
	}
	if cfg.PipelineLatency, err = durationOr(getenv, "PIPELINE_LATENCY", 0); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationOr(getenv, "SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.Schedule != "" && len(cfg.ScheduleTasks) == 0 {
		return Config{}, fmt.Errorf("config: RUN_SCHEDULE requires SCHEDULE_TASKS")
	}
	return cfg, nil
}

// Addr возвращает адрес для http.Server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func floatOr(getenv func(string) string, key string, def float64) (float64, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("config: %s must be a non-negative number, got %q", key, v)
	}
	return f, nil
}

func durationOr(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: %s must be a duration, got %q", key, v)
	}
	return d, nil
}
