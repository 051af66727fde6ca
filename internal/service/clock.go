package service

import "time"

// Clock abstracts wall time so slot search tests can pin "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
