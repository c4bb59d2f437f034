package capture

import "time"

// Ticker drives the elapsed-seconds cadence of a recording.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type clockTicker struct {
	t *time.Ticker
}

// NewClockTicker returns a Ticker backed by time.Ticker.
func NewClockTicker(d time.Duration) Ticker {
	return &clockTicker{t: time.NewTicker(d)}
}

func (c *clockTicker) C() <-chan time.Time { return c.t.C }

func (c *clockTicker) Stop() { c.t.Stop() }
