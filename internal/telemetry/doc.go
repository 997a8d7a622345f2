// Package telemetry — логирование и метрики Conductor.
//
// NewLogger строит slog.Logger по уровню и формату (LOG_LEVEL, LOG_FORMAT);
// логгер переносится в context через WithLogger / FromContext.
//
// Metrics считает runs по стратегии и статусу, задачи по статусу и
// длительности, срабатывания fallback. Сервер отдаёт их на /metrics.
package telemetry
