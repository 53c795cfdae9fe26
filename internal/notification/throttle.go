package notification

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled is returned when an alert is dropped by a Throttled notifier.
var ErrThrottled = errors.New("notification throttled")

// Throttled caps the alert rate of the wrapped notifier. Alerts over the
// limit are dropped, not queued.
type Throttled struct {
	next Notifier
	lim  *rate.Limiter
}

// Throttle allows one alert per interval with the given burst.
func Throttle(n Notifier, every time.Duration, burst int) *Throttled {
	return &Throttled{next: n, lim: rate.NewLimiter(rate.Every(every), burst)}
}

func (t *Throttled) Send(ctx context.Context, alert Alert) error {
	if !t.lim.Allow() {
		return ErrThrottled
	}
	return t.next.Send(ctx, alert)
}
