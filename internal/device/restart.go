// Package device holds the collaborators around the control plane: the
// restart hook, the display driver and the fatal halt.
package device

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HenriMatthijssen/ePaper/internal/metrics"
)

// DefaultRestartDelay separates the flushed response from the restart so
// the client reliably receives the result.
const DefaultRestartDelay = 500 * time.Millisecond

// Restarter runs a restart hook once, a fixed delay after it is scheduled.
type Restarter struct {
	delay   time.Duration
	fn      func(reason string)
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending bool
	reason  string
	done    chan struct{}
}

func NewRestarter(delay time.Duration, fn func(reason string), logger zerolog.Logger, m *metrics.Metrics) *Restarter {
	return &Restarter{
		delay:   delay,
		fn:      fn,
		log:     logger.With().Str("component", "restart").Logger(),
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Schedule arranges the restart. Only the first call per boot counts.
func (r *Restarter) Schedule(reason string) {
	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return
	}
	r.pending = true
	r.reason = reason
	r.mu.Unlock()

	r.metrics.IncRestart(reason)
	r.log.Info().Str("reason", reason).Dur("delay", r.delay).Msg("restart scheduled")
	go func() {
		time.Sleep(r.delay)
		if r.fn != nil {
			r.fn(reason)
		}
		close(r.done)
	}()
}

// Pending reports whether a restart was scheduled, and why.
func (r *Restarter) Pending() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending, r.reason
}

// Done is closed once the restart hook has returned.
func (r *Restarter) Done() <-chan struct{} { return r.done }
