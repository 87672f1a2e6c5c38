// Package app wires repositories, caches and services together for the
// server and jobs binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bar-booking/internal/cache"
	"github.com/iliyamo/bar-booking/internal/client"
	"github.com/iliyamo/bar-booking/internal/config"
	"github.com/iliyamo/bar-booking/internal/database"
	"github.com/iliyamo/bar-booking/internal/queue"
	"github.com/iliyamo/bar-booking/internal/repository"
	"github.com/iliyamo/bar-booking/internal/service"
)

// App holds the process-wide dependencies.
type App struct {
	Config config.Config
	Jobs   config.JobsConfig
	DB     *sql.DB
	Redis  *redis.Client

	Tx       *repository.TxManager
	Bookings *repository.BookingRepo
	Outbox   *repository.OutboxRepo
	CheckIns *repository.CheckInRepo
	QRTokens *cache.QRTokenStore
	Users    *client.UserService // nil when USER_SERVICE_URL is unset

	BookingService *service.BookingService
	CheckInService *service.CheckInService
	NoShowDetector *service.NoShowDetector
}

// Open connects to MySQL and Redis and builds the services.
func Open(cfg config.Config, jobs config.JobsConfig) (*App, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rdb, err := config.NewRedisClient()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(cfg, jobs, db, rdb), nil
}

// New builds the services on top of already opened connections.
func New(cfg config.Config, jobs config.JobsConfig, db *sql.DB, rdb *redis.Client) *App {
	a := &App{
		Config:   cfg,
		Jobs:     jobs,
		DB:       db,
		Redis:    rdb,
		Tx:       repository.NewTxManager(db),
		Bookings: repository.NewBookingRepo(db),
		Outbox:   repository.NewOutboxRepo(db),
		CheckIns: repository.NewCheckInRepo(db),
		QRTokens: cache.NewQRTokenStore(rdb, cfg.QRTokenTTL),
	}
	qr := service.NewQRIssuer(a.QRTokens)

	deps := service.BookingDeps{
		Tx:       a.Tx,
		Bookings: a.Bookings,
		Outbox:   a.Outbox,
		CheckIns: a.CheckIns,
		QR:       qr,
		Location: cfg.Location,
	}
	if cfg.UserServiceURL != "" {
		a.Users = client.NewUserService(cfg.UserServiceURL, cfg.UserServiceTimeout)
		deps.FreeSlot = a.Users
	}
	a.BookingService = service.NewBookingService(deps)
	a.CheckInService = service.NewCheckInService(a.Tx, a.Bookings, a.CheckIns, a.QRTokens, time.Now)
	a.NoShowDetector = service.NewNoShowDetector(a.Tx, a.Bookings, a.Outbox, qr, jobs.NoShowBatchSize)
	return a
}

// Migrate creates the schema if needed.
func (a *App) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, a.DB)
}

// NoShowBinding is the durable queue the ban tracker reads.  The publisher
// declares it as well so no-show events routed before the tracker first
// starts are kept.
func (a *App) NoShowBinding() queue.Binding {
	return queue.Binding{Exchange: a.Jobs.BookingExchange, Queue: a.Jobs.NoShowQueue, Keys: []string{queue.NoShowRoutingKey}}
}

// PaymentBinding is the queue payment.completed messages are read from.
func (a *App) PaymentBinding() queue.Binding {
	return queue.Binding{Exchange: a.Jobs.PaymentExchange, Queue: a.Jobs.PaymentQueue, Keys: []string{queue.PaymentCompletedRoutingKey}}
}

// Publisher returns a broker publisher for the booking exchange.  The
// caller closes it.
func (a *App) Publisher() *queue.Publisher {
	return queue.NewPublisher(a.Jobs.AMQPURL, a.Jobs.BookingExchange, a.NoShowBinding())
}

// Relay returns an outbox relay publishing through pub.
func (a *App) Relay(pub service.EventPublisher) *service.OutboxRelay {
	return service.NewOutboxRelay(a.Outbox, pub, a.Jobs.RelayBatchSize, time.Now)
}

// Now is the service clock in the bar's zone.
func (a *App) Now() time.Time { return time.Now().In(a.Config.Location) }

func (a *App) Close() error {
	rerr := a.Redis.Close()
	if err := a.DB.Close(); err != nil {
		return err
	}
	return rerr
}
