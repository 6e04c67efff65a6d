package quiz

import (
	"sync"
	"time"
)

// clock delivers one callback per logical second until halted. The
// session owns exactly one clock while Active and replaces it on every
// restart. Tick callbacks re-check session state and clock identity
// under the session lock, so a tick already in flight when halt was
// called becomes a no-op rather than a race.
type clock struct {
	stop chan struct{}
	once sync.Once
}

func newClock() *clock {
	return &clock{stop: make(chan struct{})}
}

// run starts the tick loop. The callback closes over the clock handle
// so the session can tell live ticks from stale ones.
func (c *clock) run(interval time.Duration, tick func()) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				tick()
			}
		}
	}()
}

// halt is idempotent and safe to call from any goroutine.
func (c *clock) halt() {
	c.once.Do(func() { close(c.stop) })
}
