// Package scheduler отправляет run request'ы по расписанию.
//
// Расписание (domain.Schedule) задаётся cron-выражением (robfig/cron)
// или интервалом. На каждом тике наступившие расписания создают
// запрос и передают его Submitter'у: локальному оркестратору или
// публикации в runs.requested.
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: []*domain.Schedule{nightly},
//	    Submitter: scheduler.SubmitFunc(publisher.PublishRunRequested),
//	    Store:     scheduleRepo, // опционально
//	    Leader:    scheduleRepo, // опционально
//	    Logger:    logger,
//	})
//	go sched.Run(ctx)
//
// ID запроса выводится из имени расписания и due-момента, так что
// повторная отправка одного срабатывания не выполняет run дважды.
package scheduler
