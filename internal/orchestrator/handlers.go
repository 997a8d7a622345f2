package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Conductor/internal/mq"
)

// handleRunRequested обрабатывает сообщение из очереди runs.requested.
//
// Некорректный payload и ошибки построения уходят в DLQ: повторная
// доставка их не исправит. Повтор того же ID, пока он выполняется,
// подтверждается без выполнения.
func (o *Orchestrator) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.requested payload", "error", err)
		return mq.Permanent(err)
	}

	req := payload.Request()
	o.logger.Debug("received run.requested event",
		"request_id", req.ID,
		"tasks", req.Tasks,
	)

	_, err = o.Run(ctx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRunAlreadyActive):
		o.logger.Debug("run already active, skipping", "request_id", req.ID)
		return nil
	case IsOrchestrationFault(err):
		// Итог ABORTED уже передан sink'ам
		o.logger.Error("run aborted by orchestration fault", "request_id", req.ID, "error", err)
		return mq.Permanent(err)
	default:
		o.logger.Warn("run request rejected", "request_id", req.ID, "error", err)
		return mq.Permanent(err)
	}
}
