package watch

import (
	"sync"
	"time"
)

// Countdown is a periodic timer that can be stopped any number of times.
type Countdown struct {
	ticker *time.Ticker
	once   sync.Once
}

func NewCountdown(interval time.Duration) *Countdown {
	return &Countdown{ticker: time.NewTicker(interval)}
}

func (c *Countdown) C() <-chan time.Time {
	return c.ticker.C
}

// Stop cancels the ticker. Only the first call has an effect.
func (c *Countdown) Stop() {
	c.once.Do(c.ticker.Stop)
}
