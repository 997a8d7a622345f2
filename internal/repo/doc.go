// Package repo — хранилище PostgreSQL (pgx/v5).
//
// RunRepo сохраняет итоги run и записи выполнения задач; используется
// как orchestrator.Sink. ScheduleRepo хранит время срабатываний
// расписаний, чтобы перезапуск сервера не терял пропущенные запуски,
// и выбирает лидера планировщика через advisory lock.
//
// Схема (schema.sql) применяется функцией Migrate.
package repo
