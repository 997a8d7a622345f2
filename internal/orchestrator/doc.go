// Package orchestrator — единая точка входа для выполнения run.
//
// Orchestrator.Run:
//   - разрешает порядок задач (engine.Resolve)
//   - выбирает стратегию (admission.Policy)
//   - выполняет порядок (executor.Sequential или executor.Concurrent)
//   - считает метрики и передаёт итог sink'ам (History, БД, RabbitMQ)
//
// Ошибки возвращаются только для ошибок построения запроса
// (неизвестная задача, цикл, пустой запрос) и для сбоя планировщика
// без fallback. Падения задач — часть RunResult.
//
// Start подключает оркестратор к очереди runs.requested.
package orchestrator
