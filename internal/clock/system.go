package clock

import (
	"context"
	"time"
)

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now(ctx context.Context) time.Time {
	return time.Time(f).UTC()
}
