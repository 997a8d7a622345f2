// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go      — Handler с DI (оркестратор, реестр, история, хранилище)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (trace id, логирование с полями run, recovery)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - run_handler.go  — обработчики для /runs и /plan
//   - task_handler.go — обработчики для /tasks
//
// POST /api/v1/runs выполняет запрос синхронно и возвращает итог;
// с ?async=true запрос публикуется в runs.requested.
package api
