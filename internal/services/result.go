// Package services implements the finboard domain operations on top of the
// store. Reads are fail-soft and return a ReadResult; writes are fail-hard
// and return an error.
package services

import (
	"context"

	"finboard/internal/log"
	"finboard/internal/metrics"
)

// ReadResult is the outcome of a fail-soft read. Value is always usable:
// when Err is set it holds the empty fallback of the right shape.
type ReadResult[T any] struct {
	Value T
	Err   error
}

// Degraded reports whether the read failed and Value is a fallback.
func (r ReadResult[T]) Degraded() bool { return r.Err != nil }

// softRead runs fn and, on error, logs it, counts it and substitutes fallback.
func softRead[T any](ctx context.Context, component, op string, fallback T, fn func() (T, error)) ReadResult[T] {
	v, err := fn()
	if err != nil {
		log.LogError(ctx, "Read failed, serving empty result", err, component, op, nil)
		metrics.DegradedReads.WithLabelValues(component + "." + op).Inc()
		return ReadResult[T]{Value: fallback, Err: err}
	}
	return ReadResult[T]{Value: v}
}
