package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	DayTypeWeekday = "weekday"
	DayTypeWeekend = "weekend"
)

const (
	// SlotDurationHours ширина одного слота расписания
	SlotDurationHours = 1

	// PeakHourStart и PeakHourEnd задают окно пиковых часов [17, 21).
	// Пока это глобальная политика, не настраивается по площадкам.
	PeakHourStart = 17
	PeakHourEnd   = 21

	// DefaultPeakPrice цена по умолчанию в пиковые часы
	DefaultPeakPrice = 500000

	// DefaultOffPeakPrice цена по умолчанию вне пиковых часов
	DefaultOffPeakPrice = 300000

	// CodePrefix префикс публичного кода брони
	CodePrefix = "FB-"

	// CodeAlphabet без визуально похожих символов (I, O, 0, 1)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// CodeLength количество случайных символов после префикса
	CodeLength = 6

	// CodeMaxAttempts число попыток генерации до детерминированного фолбэка
	CodeMaxAttempts = 10

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 1000

	// RateLimitCreates количество попыток бронирования в окне
	RateLimitCreates = 10

	// RateLimitWindow окно ограничения частоты бронирований, в секундах
	RateLimitWindow = 60
)

// IsTerminalStatus reports whether a reservation can no longer transition.
func IsTerminalStatus(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}

// IsActiveStatus reports whether a reservation holds the venue against conflicts.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}
