// Package steps содержит переиспользуемые реализации handler'ов задач.
//
// Step получает конфиг (отрендеренный против входа задачи), выполняет
// действие и возвращает outputs для зависимых задач:
//
//	delay      — пауза, прерываемая отменой
//	http       — HTTP запрос, код >= 400 — ошибка
//	transform  — шаблоны над outputs зависимостей
//	merge      — сведение outputs зависимостей
//	fail       — всегда ошибка
//
// Handler превращает Step + конфиг в domain.Handler:
//
//	h := steps.Handler(steps.NewHTTPStep(), map[string]any{
//	    "url": "{{ .Shared.ci_url }}/builds",
//	}, 10*time.Second)
//
// Registry сопоставляет тип шага из манифеста пайплайна с реализацией.
package steps
