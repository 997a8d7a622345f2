package registry

import (
	"errors"
	"fmt"
)

// Ошибки реестра задач.
var (
	// ErrDuplicateTask — задача с таким именем уже зарегистрирована.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrUnknownDependency — задача ссылается на незарегистрированную зависимость.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrUnknownTask — задача не найдена в реестре.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidTask — объявление задачи некорректно.
	ErrInvalidTask = errors.New("invalid task declaration")
)

// DuplicateTaskError — повторная регистрация имени.
type DuplicateTaskError struct {
	Name string
}

// Error реализует интерфейс error.
func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// Unwrap возвращает базовую ошибку.
func (e *DuplicateTaskError) Unwrap() error {
	return ErrDuplicateTask
}

// UnknownDependencyError — зависимость не зарегистрирована до зависимой задачи.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

// Error реализует интерфейс error.
func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unregistered task %q", e.Task, e.Dependency)
}

// Unwrap возвращает базовую ошибку.
func (e *UnknownDependencyError) Unwrap() error {
	return ErrUnknownDependency
}

// UnknownTaskError — запрошенная задача не найдена.
type UnknownTaskError struct {
	Name string
}

// Error реализует интерфейс error.
func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %q is not registered", e.Name)
}

// Unwrap возвращает базовую ошибку.
func (e *UnknownTaskError) Unwrap() error {
	return ErrUnknownTask
}

// InvalidTaskError — объявление не прошло валидацию.
type InvalidTaskError struct {
	Name    string
	Message string
}

// Error реализует интерфейс error.
func (e *InvalidTaskError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("task %q: %s", e.Name, e.Message)
}

// Unwrap возвращает базовую ошибку.
func (e *InvalidTaskError) Unwrap() error {
	return ErrInvalidTask
}
