package service

import (
	"time"

	"fieldbook/internal/domain"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewClock returns the wall clock. Go's time package keeps a monotonic
// reading alongside it, which the fallback code generator depends on.
func NewClock() domain.Clock { return realClock{} }
