package pipeline

import (
	"context"
	"time"
)

// StatusSource is anything that publishes pipeline snapshots.
type StatusSource interface {
	Status() Snapshot
}

// Monitor is the read-only view handed to presentation code. It never blocks the
// pipeline and the pipeline never depends on it being polled.
type Monitor struct {
	src StatusSource
}

func NewMonitor(src StatusSource) *Monitor {
	return &Monitor{src: src}
}

func (m *Monitor) Status() Snapshot {
	return m.src.Status()
}

// Progress returns the percentage of the file currently transferring.
func (m *Monitor) Progress() int {
	return m.src.Status().Percentage
}

// Poll re-reads status every interval until until returns true or ctx ends.
func (m *Monitor) Poll(ctx context.Context, interval time.Duration, until func(Snapshot) bool) (Snapshot, error) {
	snap := m.src.Status()
	if until(snap) {
		return snap, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
			snap = m.src.Status()
			if until(snap) {
				return snap, nil
			}
		}
	}
}

// Watch emits the current snapshot and then every changed snapshot seen at each
// interval. Intermediate versions between two ticks are skipped. The channel is
// closed when ctx ends.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := m.src.Status()
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := m.src.Status()
				if snap.Version == last.Version {
					continue
				}
				last = snap
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Finished reports whether the snapshot's submission reached a terminal state.
func Finished(s Snapshot) bool {
	return s.State.Terminal()
}
