package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/bar-booking/internal/app"
	"github.com/iliyamo/bar-booking/internal/config"
	"github.com/iliyamo/bar-booking/internal/handler"
	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/middleware"
	"github.com/iliyamo/bar-booking/internal/router"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.Env)
	jobs, err := config.LoadJobs()
	if err != nil {
		log.WithError(err).Fatal("invalid jobs configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(cfg, jobs)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer func() { _ = a.Close() }()
	if err := a.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())

	auth := router.Auth{
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.Redis),
	}
	router.RegisterRoutes(e)
	router.RegisterBookings(e, handler.NewBookingHandler(a.BookingService, cfg.Location), auth)
	router.RegisterCheckIn(e, handler.NewCheckInHandler(a.CheckInService), auth)

	g, gctx := errgroup.WithContext(ctx)
	addr := ":" + cfg.Port
	g.Go(func() error {
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "tz": cfg.Location}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if cfg.RunJobs {
		runJobs(gctx, g, a)
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}

// runJobs starts the outbox relay and the no-show sweep next to the HTTP
// server.  Larger deployments run them with cmd/jobs instead.
func runJobs(ctx context.Context, g *errgroup.Group, a *app.App) {
	pub := a.Publisher()
	relay := a.Relay(pub)
	g.Go(func() error {
		defer func() { _ = pub.Close() }()
		return runRelay(ctx, a, relay)
	})
	g.Go(func() error {
		return runSweep(ctx, a)
	})
}
