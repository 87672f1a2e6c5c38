package main

import (
	"context"

	"github.com/iliyamo/bar-booking/internal/app"
	"github.com/iliyamo/bar-booking/internal/service"
)

func runRelay(ctx context.Context, a *app.App, relay *service.OutboxRelay) error {
	return service.RunEvery(ctx, "outbox-relay", a.Jobs.RelayInterval, func(ctx context.Context) error {
		_, err := relay.RunOnce(ctx)
		return err
	})
}

func runSweep(ctx context.Context, a *app.App) error {
	return service.RunEvery(ctx, "noshow-sweep", a.Jobs.NoShowInterval, func(ctx context.Context) error {
		_, err := a.NoShowDetector.Sweep(ctx, a.Now())
		return err
	})
}
