// Package cli реализует инструмент командной строки conductor.
//
// # Обзор
//
// Команды выполняются через Backend:
//   - Local — в процессе: встроенный пайплайн, манифест (--manifest),
//     веса admission control (--weights);
//   - Client — HTTP-клиент Conductor API (--api-url).
//
// # Ключевые компоненты
//
// ## Client
//
// Инкапсулирует HTTP-запросы, парсинг ответов (DataResponse,
// ListResponse, ErrorResponse) и обработку ошибок (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	run, err := client.Run(ctx, req, false)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conductor run reporter --json | jq .
//
// ## Commands
//
//   - run [TASK...]  — выполнить задачи (код выхода 1, если run не COMPLETED)
//   - plan [TASK...] — порядок и стратегия без выполнения
//   - tasks          — зарегистрированные задачи
//   - runs list|show — итоги на сервере
//
// Фабричные функции команд принимают backendFn и outputFn — замыкания
// для ленивого создания Backend и Output после парсинга PersistentFlags.
package cli
