package capture

import "time"

// pacer emulates a device refresh rate for devices that could otherwise be
// polled as fast as the loop spins.
type pacer struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func newPacer(interval time.Duration) pacer {
	return pacer{interval: interval, now: time.Now}
}

// ready reports whether a new frame is due and, if so, starts the next interval.
func (p *pacer) ready() bool {
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	return true
}
