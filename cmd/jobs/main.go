// Command jobs runs the background work of the booking service: the outbox
// relay, the no-show sweep, outbox pruning and the broker consumers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iliyamo/bar-booking/internal/app"
	"github.com/iliyamo/bar-booking/internal/cache"
	"github.com/iliyamo/bar-booking/internal/config"
	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/queue"
	"github.com/iliyamo/bar-booking/internal/service"
	"github.com/iliyamo/bar-booking/internal/utils"
)

var (
	onceFlag = &cli.BoolFlag{Name: "once", Usage: "run a single cycle and exit"}
	interval = &cli.DurationFlag{Name: "interval", Usage: "override the configured cycle interval"}
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env file")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.App{
		Name:  "jobs",
		Usage: "Background jobs of the bar booking service",
		Commands: []*cli.Command{
			{
				Name:  "outbox-relay",
				Usage: "publish unprocessed outbox events to the broker",
				Flags: []cli.Flag{onceFlag, interval},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					pub := a.Publisher()
					defer func() { _ = pub.Close() }()
					relay := a.Relay(pub)
					if c.Bool("once") {
						res, err := relay.RunOnce(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("read=%d published=%d failed=%d\n", res.Read, res.Published, res.Failed)
						return nil
					}
					return service.RunEvery(c.Context, "outbox-relay", every(c, a.Jobs.RelayInterval), func(ctx context.Context) error {
						_, err := relay.RunOnce(ctx)
						return err
					})
				}),
			},
			{
				Name:  "noshow-sweep",
				Usage: "mark confirmed bookings past their grace period as no-shows",
				Flags: []cli.Flag{
					onceFlag, interval,
					&cli.TimestampFlag{Name: "at", Layout: time.RFC3339, Usage: "sweep as of this instant (implies --once)"},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if at := c.Timestamp("at"); at != nil {
						return sweepOnce(c.Context, a, at.In(a.Config.Location))
					}
					if c.Bool("once") {
						return sweepOnce(c.Context, a, a.Now())
					}
					return service.RunEvery(c.Context, "noshow-sweep", every(c, a.Jobs.NoShowInterval), func(ctx context.Context) error {
						_, err := a.NoShowDetector.Sweep(ctx, a.Now())
						return err
					})
				}),
			},
			{
				Name:  "outbox-prune",
				Usage: "delete processed outbox events older than the retention window",
				Flags: []cli.Flag{&cli.DurationFlag{Name: "older-than", Usage: "override OUTBOX_RETENTION"}},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					retention := a.Jobs.OutboxRetention
					if c.IsSet("older-than") {
						retention = c.Duration("older-than")
					}
					n, err := a.Relay(nil).Prune(c.Context, retention)
					if err != nil {
						return err
					}
					fmt.Printf("pruned=%d\n", n)
					return nil
				}),
			},
			{
				Name:  "ban-consumer",
				Usage: "count free-slot no-shows in the user service",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Users == nil {
						return fmt.Errorf("USER_SERVICE_URL is required for the ban consumer")
					}
					claims := cache.NewClaimStore(a.Redis, "consumed:", a.Jobs.DedupTTL)
					tracker := queue.NewBanTracker(a.Users, claims)
					return consume(c.Context, a, "ban-tracker", a.NoShowBinding(), tracker.Handle)
				}),
			},
			{
				Name:  "payment-consumer",
				Usage: "confirm bookings from payment.completed messages",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					payments := queue.NewPaymentConsumer(a.BookingService)
					return consume(c.Context, a, "payment-consumer", a.PaymentBinding(), payments.Handle)
				}),
			},
			{
				Name:  "migrate",
				Usage: "create the database schema",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					return a.Migrate(c.Context)
				}),
			},
			{
				Name:  "dev-token",
				Usage: "mint an access token for local testing",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "user", Required: true},
					&cli.StringFlag{Name: "role", Value: model.RoleCustomer},
					&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
					&cli.IntFlag{Name: "ttl", Value: 60, Usage: "lifetime in minutes", EnvVars: []string{"ACCESS_TOKEN_TTL_MIN"}},
				},
				Action: func(c *cli.Context) error {
					tok, err := utils.NewAccessToken(c.String("secret"), c.Uint64("user"), c.String("role"), c.Int("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(tok.Token)
					return nil
				},
			},
		},
	}

	if err := cmd.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// withApp loads configuration and connections before running fn.
func withApp(fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Load()
		logging.Init(cfg.LogLevel, cfg.Env)
		jobs, err := config.LoadJobs()
		if err != nil {
			return fmt.Errorf("jobs config: %w", err)
		}
		a, err := app.Open(cfg, jobs)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(c, a)
	}
}

func every(c *cli.Context, def time.Duration) time.Duration {
	if c.IsSet("interval") {
		return c.Duration("interval")
	}
	return def
}

func sweepOnce(ctx context.Context, a *app.App, at time.Time) error {
	res, err := a.NoShowDetector.Sweep(ctx, at)
	if err != nil {
		return err
	}
	fmt.Printf("candidates=%d marked=%d ban_signals=%d skipped=%d failed=%d\n",
		res.Candidates, res.Marked, res.BanSignals, res.Skipped, res.Failed)
	return nil
}

func consume(ctx context.Context, a *app.App, name string, b queue.Binding, h queue.Handler) error {
	err := queue.Consume(ctx, queue.ConsumerConfig{
		Name:     name,
		URL:      a.Jobs.AMQPURL,
		Binding:  b,
		Prefetch: a.Jobs.ConsumerPrefetch,
	}, h)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
