package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// outcome — результат вызова handler'а со всеми попытками.
type outcome struct {
	outputs  domain.Outputs
	err      error
	attempts int
	took     time.Duration
}

// invoke вызывает handler задачи с retry согласно decl.Retry.
//
// Между попытками ждёт RetryPolicy.Delay; отмена ctx прекращает
// повторы, но не прерывает уже запущенный handler.
func invoke(ctx context.Context, decl *domain.TaskDecl, in domain.HandlerInput, logger *slog.Logger, metrics *telemetry.Metrics) outcome {
	maxAttempts := decl.Retry.Attempts()
	logger = telemetry.WithTask(logger, decl.Name)

	var total time.Duration
	for attempt := 1; ; attempt++ {
		in.Attempt = attempt

		metrics.TaskStarted()
		start := time.Now()
		outputs, err := callHandler(ctx, decl, &in)
		took := time.Since(start)
		metrics.TaskFinished(decl.Name, took)
		total += took

		if err == nil {
			return outcome{outputs: outputs, attempts: attempt, took: total}
		}

		failed := outcome{
			err:      &domain.ExecutionError{Task: decl.Name, Attempt: attempt, Err: err},
			attempts: attempt,
			took:     total,
		}
		if attempt >= maxAttempts || ctx.Err() != nil {
			return failed
		}

		delay := decl.Retry.Delay(attempt)
		logger.Warn("task attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return failed
		case <-time.After(delay):
		}
	}
}

// callHandler вызывает handler, превращая панику в *PanicError.
func callHandler(ctx context.Context, decl *domain.TaskDecl, in *domain.HandlerInput) (outputs domain.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = &PanicError{Task: decl.Name, Value: r}
		}
	}()
	return decl.Handler(ctx, in)
}
