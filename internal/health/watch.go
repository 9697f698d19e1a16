package health

import (
	"context"
	"time"
)

// WatchOverload samples the executor's saturation signal and flips
// Ready -> Degraded once the backlog has been at capacity for the whole
// window, and back on recovery. It blocks until ctx is canceled; run it in
// its own goroutine.
func (r *Reporter) WatchOverload(ctx context.Context, saturated func() bool, window, interval time.Duration) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if window < interval {
		window = interval
	}
	var since time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !saturated() {
				since = time.Time{}
				r.Recovered()
				continue
			}
			if since.IsZero() {
				since = now
				continue
			}
			if now.Sub(since) >= window {
				r.Overloaded()
			}
		}
	}
}
