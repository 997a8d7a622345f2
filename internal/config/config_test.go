package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"CONDUCTOR_PORT", "DB_URL", "RABBITMQ_URL", "MAX_WORKERS", "HISTORY_SIZE",
		"ADMISSION_WEIGHTS", "ADMISSION_THRESHOLD", "PIPELINE_MANIFEST", "PIPELINE_LATENCY",
		"RUN_SCHEDULE", "SCHEDULE_TASKS", "SCHEDULE_DESCRIPTION", "SCHEDULE_TZ", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Config{
		Port:                "8080",
		MaxWorkers:          10,
		HistorySize:         100,
		ScheduleDescription: "scheduled run",
		ScheduleTimezone:    "UTC",
		ShutdownTimeout:     10 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CONDUCTOR_PORT", "9090")
	t.Setenv("DB_URL", "postgresql://db")
	t.Setenv("RABBITMQ_URL", "amqp://mq")
	t.Setenv("MAX_WORKERS", "4")
	t.Setenv("HISTORY_SIZE", "20")
	t.Setenv("ADMISSION_WEIGHTS", "weights.hcl")
	t.Setenv("ADMISSION_THRESHOLD", "7.5")
	t.Setenv("PIPELINE_MANIFEST", "release.yaml")
	t.Setenv("PIPELINE_LATENCY", "200ms")
	t.Setenv("RUN_SCHEDULE", "*/5 * * * *")
	t.Setenv("SCHEDULE_TASKS", "validator, reporter,,")
	t.Setenv("SCHEDULE_DESCRIPTION", "nightly")
	t.Setenv("SCHEDULE_TZ", "Europe/Moscow")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Config{
		Port:                "9090",
		DatabaseURL:         "postgresql://db",
		RabbitMQURL:         "amqp://mq",
		MaxWorkers:          4,
		AdmissionWeights:    "weights.hcl",
		AdmissionThreshold:  7.5,
		PipelineManifest:    "release.yaml",
		PipelineLatency:     200 * time.Millisecond,
		Schedule:            "*/5 * * * *",
		ScheduleTasks:       []string{"validator", "reporter"},
		ScheduleDescription: "nightly",
		ScheduleTimezone:    "Europe/Moscow",
		HistorySize:         20,
		ShutdownTimeout:     30 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "workers not a number", env: map[string]string{"MAX_WORKERS": "many"}, want: "MAX_WORKERS"},
		{name: "workers zero", env: map[string]string{"MAX_WORKERS": "0"}, want: "MAX_WORKERS"},
		{name: "negative threshold", env: map[string]string{"ADMISSION_THRESHOLD": "-1"}, want: "ADMISSION_THRESHOLD"},
		{name: "bad latency", env: map[string]string{"PIPELINE_LATENCY": "fast"}, want: "PIPELINE_LATENCY"},
		{name: "schedule without tasks", env: map[string]string{"RUN_SCHEDULE": "@hourly"}, want: "SCHEDULE_TASKS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := func(key string) string { return tt.env[key] }
			_, err := load(env)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
