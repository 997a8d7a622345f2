package admission

import (
	"strings"
	"unicode"

	"github.com/shaiso/Conductor/internal/domain"
)

// Scorer оценивает сложность запроса.
type Scorer interface {
	Score(req *domain.RunRequest, order []*domain.TaskDecl) float64
}

// ScorerFunc — адаптер функции к Scorer.
type ScorerFunc func(req *domain.RunRequest, order []*domain.TaskDecl) float64

// Score вызывает f.
func (f ScorerFunc) Score(req *domain.RunRequest, order []*domain.TaskDecl) float64 {
	return f(req, order)
}

// SizeScorer начисляет PerTask очков за каждую задачу разрешённого порядка.
type SizeScorer struct {
	PerTask float64
}

// Score реализует Scorer.
func (s SizeScorer) Score(_ *domain.RunRequest, order []*domain.TaskDecl) float64 {
	return s.PerTask * float64(len(order))
}

// KeywordScorer начисляет вес за каждое ключевое слово,
// встретившееся в описании запроса как отдельное слово.
// Регистр не важен; каждое слово учитывается один раз.
type KeywordScorer struct {
	Weights map[string]float64
}

// Score реализует Scorer.
func (s KeywordScorer) Score(req *domain.RunRequest, _ []*domain.TaskDecl) float64 {
	if req == nil || len(s.Weights) == 0 {
		return 0
	}

	words := make(map[string]bool)
	for _, w := range tokenize(req.Description) {
		words[w] = true
	}

	score := 0.0
	for keyword, weight := range s.Weights {
		if words[strings.ToLower(keyword)] {
			score += weight
		}
	}
	return score
}

// tokenize разбивает текст на слова в нижнем регистре.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// Sum складывает оценки нескольких Scorer.
func Sum(scorers ...Scorer) Scorer {
	return ScorerFunc(func(req *domain.RunRequest, order []*domain.TaskDecl) float64 {
		total := 0.0
		for _, s := range scorers {
			total += s.Score(req, order)
		}
		return total
	})
}
