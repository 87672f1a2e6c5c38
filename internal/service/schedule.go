package service

import (
	"context"
	"time"

	"github.com/iliyamo/bar-booking/internal/logging"
)

// RunEvery calls fn immediately and then every interval until ctx is
// cancelled.  Errors from fn are logged and do not stop the loop.
func RunEvery(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) error {
	log := logging.FromContext(ctx).WithField("job", name)
	log.WithField("interval", interval).Info("job started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("job cycle failed")
		}
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return nil
		case <-ticker.C:
		}
	}
}
