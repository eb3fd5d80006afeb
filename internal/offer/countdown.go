package offer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is the fixed window an offer stays pending before automatic
// expiry. The countdown fraction divides by the configured TTL, not the
// offeredAt/expiresAt delta, so the bar always renders against the same
// scale.
const DefaultTTL = 30 * time.Second

// DefaultTickInterval is how often a pending offer's countdown is
// re-sampled for display.
const DefaultTickInterval = 200 * time.Millisecond

// Remaining returns the time left before expiresAt, floored at zero.
func Remaining(expiresAt, now time.Time) time.Duration {
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Fraction returns remaining/ttl clamped to [0, 1], driving the
// proportional countdown indicator.
func Fraction(remaining, ttl time.Duration) float64 {
	if ttl <= 0 {
		return 0
	}
	f := float64(remaining) / float64(ttl)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Tick is one countdown sample for a pending offer.
type Tick struct {
	OrderID      int64         `json:"order_id"`
	Remaining    time.Duration `json:"-"`
	RemainingSec int           `json:"remaining_sec"`
	Fraction     float64       `json:"fraction"`
}

// Countdown samples the remaining time of pending offers on a fixed
// interval. It owns no state beyond the refresh tick; remaining time is
// always derived from expiresAt and the injected clock.
type Countdown struct {
	clock    clockwork.Clock
	interval time.Duration
	ttl      time.Duration
}

// NewCountdown creates a countdown sampler. Zero interval or ttl fall
// back to the defaults.
func NewCountdown(clock clockwork.Clock, interval, ttl time.Duration) *Countdown {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Countdown{clock: clock, interval: interval, ttl: ttl}
}

// TTL returns the configured maximum window.
func (c *Countdown) TTL() time.Duration { return c.ttl }

// Sample computes the current tick for an offer expiring at expiresAt.
func (c *Countdown) Sample(orderID int64, expiresAt time.Time) Tick {
	remaining := Remaining(expiresAt, c.clock.Now())
	return Tick{
		OrderID:      orderID,
		Remaining:    remaining,
		RemainingSec: int(remaining.Round(time.Second) / time.Second),
		Fraction:     Fraction(remaining, c.ttl),
	}
}

// Watch emits a tick every interval until the countdown reaches zero or
// the context is cancelled. The caller cancels the context the moment the
// offer leaves pending; no ticker survives a resolved offer.
func (c *Countdown) Watch(ctx context.Context, orderID int64, expiresAt time.Time, fn func(Tick)) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tick := c.Sample(orderID, expiresAt)
			fn(tick)
			if tick.Remaining == 0 {
				return
			}
		}
	}
}
