package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Conductor/internal/domain"
)

func TestRecord_RejectsInvalidResult(t *testing.T) {
	r := NewRunRepo(nil)

	if err := r.Record(context.Background(), nil); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("Record(nil) error = %v, want ErrInvalidResult", err)
	}
	if err := r.Record(context.Background(), &domain.RunResult{}); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("Record(no id) error = %v, want ErrInvalidResult", err)
	}
}

func TestRecordRow_RoundTrip(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ended := started.Add(1500 * time.Millisecond)

	tests := []struct {
		name string
		rec  domain.ExecutionRecord
	}{
		{
			name: "completed",
			rec: domain.ExecutionRecord{
				Task:            "planner",
				Status:          domain.TaskStatusCompleted,
				Critical:        true,
				StartedAt:       &started,
				EndedAt:         &ended,
				Outputs:         domain.Outputs{"steps": float64(3), "plan": []any{"a", "b"}},
				Attempts:        1,
				HandlerDuration: 1500 * time.Millisecond,
			},
		},
		{
			name: "failed",
			rec: domain.ExecutionRecord{
				Task:      "implementer",
				Status:    domain.TaskStatusFailed,
				StartedAt: &started,
				EndedAt:   &ended,
				Error:     storedError("task implementer failed: boom"),
				Attempts:  2,
			},
		},
		{
			name: "skipped",
			rec: domain.ExecutionRecord{
				Task:       "validator",
				Status:     domain.TaskStatusSkipped,
				EndedAt:    &ended,
				SkipReason: "critical dependency implementer failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := newRecordRow(2, &tt.rec)
			if err != nil {
				t.Fatalf("newRecordRow() error = %v", err)
			}
			if row.Position != 2 {
				t.Errorf("Position = %d, want 2", row.Position)
			}

			got, err := row.record()
			if err != nil {
				t.Fatalf("record() error = %v", err)
			}
			if diff := cmp.Diff(tt.rec, got, cmp.Comparer(sameError)); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecordRow_UnmarshalableOutputs(t *testing.T) {
	rec := &domain.ExecutionRecord{
		Task:    "broken",
		Status:  domain.TaskStatusCompleted,
		Outputs: domain.Outputs{"ch": make(chan int)},
	}
	if _, err := newRecordRow(0, rec); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestErrorFrom(t *testing.T) {
	empty := ""
	msg := "boom"

	if errorFrom(nil) != nil || errorFrom(&empty) != nil {
		t.Error("NULL and empty columns should restore nil error")
	}
	if err := errorFrom(&msg); err == nil || err.Error() != "boom" {
		t.Errorf("errorFrom() = %v, want boom", err)
	}
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Error() == b.Error()
}
