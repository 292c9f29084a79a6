package utils

import (
	"time"

	"github.com/sony/gobreaker"
)

func ExecuteWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		return *new(T), err
	}

	return res.(T), nil
}

// NewBreaker opens after failures consecutive errors and probes again after
// cooldown. A zero failures value falls back to 3.
func NewBreaker(name string, failures uint32, cooldown time.Duration, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 3
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: onChange,
	})
}
