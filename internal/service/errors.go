package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval - начало интервала не строго раньше конца
	ErrInvalidInterval = errors.New("interval start must be strictly before end")

	// ErrPastBooking - попытка бронирования в прошлом
	ErrPastBooking = errors.New("cannot book an interval in the past")

	// ErrDateTooFar - бронирование дальше горизонта планирования
	ErrDateTooFar = errors.New("booking date is too far in the future")

	// ErrInvalidCode - код завершения не совпал
	ErrInvalidCode = errors.New("completion code does not match")

	// ErrInvalidTransition - недопустимый переход статуса
	ErrInvalidTransition = errors.New("invalid status transition")
)

func invalidTransition(event, current, allowed string) error {
	return fmt.Errorf("%w: %s is only allowed from %q, current status is %q", ErrInvalidTransition, event, allowed, current)
}
