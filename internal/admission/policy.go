package admission

import (
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

// Decision — решение admission control.
type Decision struct {
	Strategy domain.Strategy `json:"strategy"`
	Score    float64         `json:"score"`
	Reason   string          `json:"reason"`
}

// Policy выбирает стратегию для запроса и его разрешённого порядка.
type Policy interface {
	Decide(req *domain.RunRequest, order []*domain.TaskDecl) Decision
}

// ThresholdPolicy — оценка не ниже Threshold выбирает CONCURRENT.
//
// AllowParallel=false или порядок из одной задачи всегда дают SEQUENTIAL.
type ThresholdPolicy struct {
	Scorer    Scorer
	Threshold float64
}

// NewPolicy создаёт ThresholdPolicy из весов.
func NewPolicy(w Weights) *ThresholdPolicy {
	return &ThresholdPolicy{
		Scorer: Sum(
			SizeScorer{PerTask: w.PerTask},
			KeywordScorer{Weights: w.Keywords},
		),
		Threshold: w.Threshold,
	}
}

// Decide реализует Policy.
func (p *ThresholdPolicy) Decide(req *domain.RunRequest, order []*domain.TaskDecl) Decision {
	score := 0.0
	if p.Scorer != nil {
		score = p.Scorer.Score(req, order)
	}

	switch {
	case req != nil && !req.Options.AllowParallel:
		return Decision{Strategy: domain.StrategySequential, Score: score, Reason: "parallel execution disabled"}
	case len(order) <= 1:
		return Decision{Strategy: domain.StrategySequential, Score: score, Reason: "single task"}
	case score >= p.Threshold:
		return Decision{
			Strategy: domain.StrategyConcurrent,
			Score:    score,
			Reason:   fmt.Sprintf("score %.1f >= threshold %.1f", score, p.Threshold),
		}
	default:
		return Decision{
			Strategy: domain.StrategySequential,
			Score:    score,
			Reason:   fmt.Sprintf("score %.1f < threshold %.1f", score, p.Threshold),
		}
	}
}

// Fixed — политика с заранее выбранной стратегией.
// Запрет параллельности в запросе сильнее выбранной стратегии.
type Fixed domain.Strategy

// Decide реализует Policy.
func (f Fixed) Decide(req *domain.RunRequest, _ []*domain.TaskDecl) Decision {
	if req != nil && !req.Options.AllowParallel {
		return Decision{Strategy: domain.StrategySequential, Reason: "parallel execution disabled"}
	}
	return Decision{Strategy: domain.Strategy(f), Reason: "fixed strategy"}
}
