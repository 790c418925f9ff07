package doccache

import "time"

const (
	defaultScanInterval = 5 * time.Minute
	defaultSweepTimeout = time.Minute
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// positiveOr returns def unless d is strictly positive.
func positiveOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
