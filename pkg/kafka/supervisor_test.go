package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
)

func fastSupervisor(maxAttempts int, m *metrics.Metrics) *Supervisor {
	s := NewSupervisor("test", maxAttempts, zap.NewNop(), m)
	s.InitialInterval = time.Millisecond
	s.MaxInterval = 5 * time.Millisecond
	return s
}

func TestSupervisor_RetriesUntilSuccess(t *testing.T) {
	s := fastSupervisor(0, nil)

	calls := 0
	err := s.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSupervisor_GivesUp(t *testing.T) {
	m := metrics.New("test")
	s := fastSupervisor(4, m)

	var gaveUp error
	s.OnGiveUp = func(err error) { gaveUp = err }

	boom := errors.New("broker unavailable")
	calls := 0
	err := s.Run(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, gaveUp, boom)
	count, err := testutil.GatherAndCount(m.Registry(), "kafka_supervisor_giveups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSupervisor_StopsOnCancel(t *testing.T) {
	s := fastSupervisor(0, nil)
	s.OnGiveUp = func(error) { t.Fatal("give-up must not fire on cancellation") }

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.Run(ctx, func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("broker unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestSupervisor_HealthyResetsBackoff(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	s := NewSupervisor("test", 3, zap.New(core), nil)
	s.InitialInterval = time.Millisecond
	s.MaxInterval = time.Second
	s.Jitter = 0

	calls := 0
	err := s.Supervise(context.Background(), func(_ context.Context, healthy func()) error {
		calls++
		switch calls {
		case 3:
			healthy()
			return errors.New("session lost")
		case 5:
			return nil
		default:
			return errors.New("broker unavailable")
		}
	})

	// Three attempts would have exhausted the budget without the reset.
	require.NoError(t, err)
	assert.Equal(t, 5, calls)

	var waits []time.Duration
	for _, e := range logs.FilterMessage("attempt failed, retrying").All() {
		waits = append(waits, e.ContextMap()["wait"].(time.Duration))
	}
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		1500 * time.Microsecond,
		time.Millisecond,
		1500 * time.Microsecond,
	}, waits)
}
