package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SettledRetention is how long settled cart rows are kept before purging.
const SettledRetention = time.Hour

// CartExpirer is the part of the cart service the sweeper drives.
type CartExpirer interface {
	ReleaseExpired(ctx context.Context, limit int) (int, error)
	PurgeSettled(ctx context.Context, age time.Duration) (int64, error)
}

// ExpirySweeper periodically returns the reservations of expired cart
// items to their slots.  Reads release lazily as well; the sweeper makes
// sure abandoned carts do not hold capacity until someone looks at them.
type ExpirySweeper struct {
	carts    CartExpirer
	interval time.Duration
	batch    int
	log      *logrus.Entry
}

func NewExpirySweeper(carts CartExpirer, interval time.Duration, batch int) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch < 1 {
		batch = 1
	}
	return &ExpirySweeper{
		carts:    carts,
		interval: interval,
		batch:    batch,
		log:      logrus.WithField("component", "expiry_sweeper"),
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("expiry sweeper started")
	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep drains expired items batch by batch and then purges old settled
// rows.  It returns the number of items released.
func (w *ExpirySweeper) Sweep(ctx context.Context) int {
	total := 0
	for {
		n, err := w.carts.ReleaseExpired(ctx, w.batch)
		total += n
		if err != nil {
			if ctx.Err() == nil {
				w.log.WithError(err).Error("release expired cart items")
			}
			return total
		}
		// A short batch means nothing else is waiting.  A full batch where
		// some items failed also stops here so failures are not retried in
		// a tight loop.
		if n < w.batch {
			break
		}
	}
	if total > 0 {
		w.log.WithField("released", total).Info("expired cart items released")
	}

	purged, err := w.carts.PurgeSettled(ctx, SettledRetention)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Warn("purge settled cart items")
		}
		return total
	}
	if purged > 0 {
		w.log.WithField("purged", purged).Debug("settled cart items purged")
	}
	return total
}
