// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — Dial с повторами, переподключение с backoff
//   - topology.go   — объявление exchanges, queues, bindings
//   - payload.go    — payload'ы сообщений и их сборка из domain
//   - publisher.go  — публикация сообщений (Publisher — также Sink итогов run)
//   - consumer.go   — потребление; Settle решает ack / requeue / DLQ
//
// Типы сообщений:
//   - run.requested — запрос на выполнение набора задач
//   - run.completed — итог выполнения run
//
// Exchanges:
//   - conductor.runs — события runs
//   - conductor.dlq  — dead letter queue
package mq
