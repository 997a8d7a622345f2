// Package aggregator сводит записи выполнения в итог run.
//
// Aggregate — чистая функция над списком записей: без побочных
// эффектов и без обращения к реестру.
package aggregator

import (
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

// ReviewThreshold — доля успешных задач, ниже которой
// рекомендуется пересмотреть конфигурацию.
const ReviewThreshold = 0.7

// ClosingRecommendation — статическая завершающая рекомендация.
const ClosingRecommendation = "review execution records for task outputs and timings"

// Summary — итог по списку записей.
type Summary struct {
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	SkippedCount    int              `json:"skipped_count"`
	OverallStatus   domain.RunStatus `json:"overall_status"`
	Recommendations []string         `json:"recommendations"`
}

// Total возвращает количество учтённых задач.
func (s Summary) Total() int {
	return s.SuccessCount + s.FailureCount + s.SkippedCount
}

// SuccessRate возвращает долю успешных задач (0 для пустого итога).
func (s Summary) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.Total())
}

// Aggregate считает итог по записям.
//
// Статус:
//
//	COMPLETED           — нет упавших и пропущенных задач
//	ABORTED             — упала критичная задача или есть пропущенные
//	PARTIALLY_COMPLETED — иначе (упали только опциональные)
//
// Рекомендации: по одной "retry" на каждую упавшую задачу (в порядке
// записей), "review configuration" при доле успеха ниже ReviewThreshold
// и ClosingRecommendation.
func Aggregate(records []domain.ExecutionRecord) Summary {
	var s Summary
	criticalFailed := false
	failed := make([]string, 0)

	for i := range records {
		rec := &records[i]
		switch rec.Status {
		case domain.TaskStatusCompleted:
			s.SuccessCount++
		case domain.TaskStatusFailed:
			s.FailureCount++
			failed = append(failed, rec.Task)
			if rec.Critical {
				criticalFailed = true
			}
		case domain.TaskStatusSkipped:
			s.SkippedCount++
		}
	}

	switch {
	case criticalFailed || s.SkippedCount > 0:
		s.OverallStatus = domain.RunStatusAborted
	case s.FailureCount == 0:
		s.OverallStatus = domain.RunStatusCompleted
	default:
		s.OverallStatus = domain.RunStatusPartiallyCompleted
	}

	s.Recommendations = make([]string, 0, len(failed)+2)
	for _, name := range failed {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf("retry task %q", name))
	}
	if s.Total() > 0 && s.SuccessRate() < ReviewThreshold {
		s.Recommendations = append(s.Recommendations, fmt.Sprintf(
			"review configuration: success rate %.0f%% is below %.0f%%",
			s.SuccessRate()*100, ReviewThreshold*100,
		))
	}
	s.Recommendations = append(s.Recommendations, ClosingRecommendation)

	return s
}

// Apply заполняет счётчики, статус и рекомендации результата.
//
// Сбой планировщика без fallback делает run ABORTED независимо от записей.
func Apply(result *domain.RunResult) Summary {
	s := Aggregate(result.Records)
	if result.Fault != nil && result.Strategy != domain.StrategyConcurrentFallback {
		s.OverallStatus = domain.RunStatusAborted
	}

	result.SuccessCount = s.SuccessCount
	result.FailureCount = s.FailureCount
	result.SkippedCount = s.SkippedCount
	result.Status = s.OverallStatus
	result.Recommendations = s.Recommendations
	return s
}
