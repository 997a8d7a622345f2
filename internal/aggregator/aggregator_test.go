package aggregator

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func rec(name string, status domain.TaskStatus, critical bool) domain.ExecutionRecord {
	return domain.ExecutionRecord{Task: name, Status: status, Critical: critical}
}

func TestAggregate_AllCompleted(t *testing.T) {
	s := Aggregate([]domain.ExecutionRecord{
		rec("a", domain.TaskStatusCompleted, true),
		rec("b", domain.TaskStatusCompleted, false),
	})

	if s.OverallStatus != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", s.OverallStatus)
	}
	if s.SuccessCount != 2 || s.FailureCount != 0 || s.SkippedCount != 0 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != ClosingRecommendation {
		t.Errorf("expected only closing recommendation, got %v", s.Recommendations)
	}
}

func TestAggregate_CriticalFailure(t *testing.T) {
	s := Aggregate([]domain.ExecutionRecord{
		rec("analyzer", domain.TaskStatusCompleted, true),
		rec("planner", domain.TaskStatusCompleted, false),
		rec("implementer", domain.TaskStatusFailed, true),
		rec("validator", domain.TaskStatusSkipped, false),
	})

	if s.OverallStatus != domain.RunStatusAborted {
		t.Errorf("expected ABORTED, got %s", s.OverallStatus)
	}
	if s.SuccessCount != 2 || s.FailureCount != 1 || s.SkippedCount != 1 {
		t.Errorf("expected 2/1/1, got %d/%d/%d", s.SuccessCount, s.FailureCount, s.SkippedCount)
	}

	// 2/4 < 0.7: retry + review + closing
	if len(s.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %v", s.Recommendations)
	}
	if s.Recommendations[0] != `retry task "implementer"` {
		t.Errorf("unexpected retry recommendation %q", s.Recommendations[0])
	}
	if !strings.HasPrefix(s.Recommendations[1], "review configuration") {
		t.Errorf("expected review recommendation, got %q", s.Recommendations[1])
	}
}

func TestAggregate_OptionalFailureOnly(t *testing.T) {
	records := []domain.ExecutionRecord{
		rec("a", domain.TaskStatusCompleted, false),
		rec("b", domain.TaskStatusCompleted, false),
		rec("c", domain.TaskStatusCompleted, false),
		rec("d", domain.TaskStatusFailed, false),
	}
	s := Aggregate(records)

	if s.OverallStatus != domain.RunStatusPartiallyCompleted {
		t.Errorf("expected PARTIALLY_COMPLETED, got %s", s.OverallStatus)
	}
	// 3/4 = 0.75, review не нужен
	for _, r := range s.Recommendations {
		if strings.HasPrefix(r, "review configuration") {
			t.Errorf("unexpected review recommendation at 75%% success")
		}
	}
}

func TestAggregate_SkippedMeansAborted(t *testing.T) {
	s := Aggregate([]domain.ExecutionRecord{
		rec("a", domain.TaskStatusCompleted, false),
		rec("b", domain.TaskStatusSkipped, false),
	})
	if s.OverallStatus != domain.RunStatusAborted {
		t.Errorf("expected ABORTED, got %s", s.OverallStatus)
	}
}

func TestAggregate_RetryOrderFollowsRecords(t *testing.T) {
	s := Aggregate([]domain.ExecutionRecord{
		rec("z", domain.TaskStatusFailed, false),
		rec("a", domain.TaskStatusFailed, false),
	})
	if s.Recommendations[0] != `retry task "z"` || s.Recommendations[1] != `retry task "a"` {
		t.Errorf("retry recommendations out of order: %v", s.Recommendations)
	}
}

func TestAggregate_CountsSumToTotal(t *testing.T) {
	records := []domain.ExecutionRecord{
		rec("a", domain.TaskStatusCompleted, false),
		rec("b", domain.TaskStatusFailed, false),
		rec("c", domain.TaskStatusSkipped, false),
		rec("d", domain.TaskStatusCompleted, false),
		rec("e", domain.TaskStatusFailed, true),
	}
	if s := Aggregate(records); s.Total() != len(records) {
		t.Errorf("counts %d do not sum to %d", s.Total(), len(records))
	}
}

func TestApply(t *testing.T) {
	result := &domain.RunResult{
		Strategy: domain.StrategyConcurrent,
		Records: []domain.ExecutionRecord{
			rec("a", domain.TaskStatusCompleted, false),
		},
	}

	Apply(result)
	if result.Status != domain.RunStatusCompleted || result.SuccessCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	result.Fault = errors.New("scheduler fault")
	Apply(result)
	if result.Status != domain.RunStatusAborted {
		t.Errorf("fault without fallback must abort, got %s", result.Status)
	}

	result.Strategy = domain.StrategyConcurrentFallback
	Apply(result)
	if result.Status != domain.RunStatusCompleted {
		t.Errorf("fallback run is judged by records, got %s", result.Status)
	}
}
