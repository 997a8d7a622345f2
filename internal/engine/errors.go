package engine

import (
	"errors"
	"strings"
)

// Ошибки разрешения зависимостей.
var (
	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrEmptyRequest — не запрошено ни одной задачи.
	ErrEmptyRequest = errors.New("no tasks requested")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// CyclicDependencyError — цикл в графе зависимостей.
//
// Cycle содержит участников цикла в порядке обхода,
// первый элемент повторяется в конце: [a b c a].
type CyclicDependencyError struct {
	Cycle []string
}

// Error реализует интерфейс error.
func (e *CyclicDependencyError) Error() string {
	return ErrCyclicDependency.Error() + ": " + strings.Join(e.Cycle, " -> ")
}

// Unwrap возвращает базовую ошибку.
func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}

// Members возвращает уникальных участников цикла.
func (e *CyclicDependencyError) Members() []string {
	if len(e.Cycle) <= 1 {
		return e.Cycle
	}
	return e.Cycle[:len(e.Cycle)-1]
}
