package orchestrator

import (
	"errors"

	"github.com/shaiso/Conductor/internal/engine"
)

// Ошибки оркестратора.
var (
	// ErrEmptyRequest — запрос без задач.
	ErrEmptyRequest = engine.ErrEmptyRequest

	// ErrNilRequest — запрос не передан.
	ErrNilRequest = errors.New("run request is nil")

	// ErrRunAlreadyActive — запрос с таким ID уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrNoConnection — Start вызван без соединения с RabbitMQ.
	ErrNoConnection = errors.New("rabbitmq connection is not configured")

	// ErrNoRegistry — оркестратор создан без реестра задач.
	ErrNoRegistry = errors.New("task registry is not configured")
)
