package relay

import (
	"context"
	"time"
)

// Sweeper is what the monitor drives each tick. *Registry satisfies it.
type Sweeper interface {
	Sweep()
}

// Monitor triggers a liveness sweep at a fixed interval, independent of any
// single connection's lifecycle. Each sweep sees the connection set as of
// that tick.
type Monitor struct {
	target   Sweeper
	interval time.Duration
}

func NewMonitor(target Sweeper, interval time.Duration) *Monitor {
	return &Monitor{target: target, interval: interval}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.target.Sweep()
		}
	}
}
