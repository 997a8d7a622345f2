// Package executor выполняет разрешённый порядок задач.
//
// Две стратегии с одинаковым контрактом:
//   - Sequential — задачи строго по очереди, одна RUNNING в каждый момент
//   - Concurrent — воркеры в errgroup; единый цикл планировщика владеет
//     записями и слотами, получает события завершения по каналу
//
// Обе стратегии принимают любой валидный порядок из engine.Resolve и
// отличаются только временем выполнения и меткой стратегии.
//
// Ошибки handler'ов не прерывают run: они записываются в ExecutionRecord.
// Падение критичной задачи приводит к пропуску (SKIPPED) зависимой работы.
// Сбой самого планировщика — *OrchestrationFault; при AllowFallback run
// повторяется последовательно.
package executor
