package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidResult — результат нельзя сохранить.
	ErrInvalidResult = errors.New("invalid run result")
)

// storedError — ошибка, восстановленная из текстовой колонки.
type storedError string

// Error реализует интерфейс error.
func (e storedError) Error() string {
	return string(e)
}

// errorFrom восстанавливает ошибку из NULL-able колонки.
func errorFrom(msg *string) error {
	if msg == nil || *msg == "" {
		return nil
	}
	return storedError(*msg)
}
