// Package app wires the sync service together and runs it until a signal
// arrives.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/srbio/internal/backup"
	"github.com/dmitrijs2005/srbio/internal/config"
	"github.com/dmitrijs2005/srbio/internal/health"
	"github.com/dmitrijs2005/srbio/internal/httpapi"
	"github.com/dmitrijs2005/srbio/internal/lock"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/publish"
	"github.com/dmitrijs2005/srbio/internal/realtime"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
	"github.com/dmitrijs2005/srbio/internal/services"
	"github.com/dmitrijs2005/srbio/internal/session"
	"github.com/dmitrijs2005/srbio/internal/status"
	"github.com/dmitrijs2005/srbio/internal/syncer"
	"github.com/dmitrijs2005/srbio/internal/terminal"
	_ "github.com/dmitrijs2005/srbio/internal/terminal/sim"
	"github.com/dmitrijs2005/srbio/internal/timex"

	gs "github.com/dmitrijs2005/srbio/internal/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     *repomanager.SQLRepositoryManager
	publisher publish.Publisher
	closers   []io.Closer

	hub     *realtime.Hub
	health  *gs.HealthServer
	monitor *health.Monitor
	http    *httpapi.Server
}

// NewApp opens the store and the optional backends and builds every
// component. Run starts them.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}

	app := &App{config: cfg, logger: logger}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	cfg := app.config

	repos, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, app.logger)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.repos = repos
	app.closers = append(app.closers, repos)

	locker, err := app.newLocker(ctx)
	if err != nil {
		return fmt.Errorf("lock init error: %w", err)
	}

	pub, err := publish.Open(publish.Options{
		Backend:      cfg.PublisherBackend,
		NATSURL:      cfg.NATSURL,
		KafkaBrokers: cfg.KafkaBrokers,
		MQTTBroker:   cfg.MQTTBrokerURL,
		Topic:        cfg.EventTopic,
	})
	if err != nil {
		return fmt.Errorf("publisher init error: %w", err)
	}
	app.publisher = pub
	app.closers = append(app.closers, pub)

	dialer, err := terminal.Open(cfg.TerminalDriver)
	if err != nil {
		return err
	}
	loc, err := timex.LoadLocation(cfg.TerminalTimezone)
	if err != nil {
		return err
	}

	db := repos.DB()
	devRepo := repos.Devices(db)

	app.hub = realtime.NewHub(cfg.AllowedOrigins, app.logger)
	app.health = gs.NewHealthServer(cfg.GRPCAddr, app.logger)
	list, err := devRepo.List(ctx)
	if err != nil {
		return err
	}
	app.health.Seed(list)

	notifier := status.Notifiers{app.hub, app.health, publish.NewStatusNotifier(pub, app.logger)}
	recorder := status.NewRecorder(devRepo, notifier, timex.SystemClock{}, app.logger)

	sessions := session.NewManager(dialer, locker, recorder, session.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		SessionTimeout: cfg.SessionTimeout,
	}, app.logger)

	app.monitor = health.NewMonitor(devRepo, app.prober(dialer), recorder, timex.SystemClock{}, health.Options{
		Interval:    cfg.HealthInterval,
		Concurrency: cfg.HealthConcurrency,
	}, app.logger)

	syncSvc := services.NewSyncService(repos,
		syncer.NewAttendanceSyncer(sessions, devRepo, repos.Attendance(db), pub, loc, app.logger),
		syncer.NewUserDownloader(sessions, devRepo, repos.Users(db), app.logger),
		syncer.NewUserUploader(sessions, devRepo, repos.Users(db), cfg.MaxNameLength, app.logger),
		app.hub, cfg.ClearLogsAfterDownload, app.logger)

	uploader := backup.NewS3Uploader(backup.Options{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	app.http = httpapi.NewServer(httpapi.Services{
		Devices: services.NewDeviceService(repos, sessions, app.monitor, app.logger),
		Users:   services.NewUserService(repos),
		Sync:    syncSvc,
		Logs:    services.NewAttendanceService(repos),
		Auth:    services.NewAuthService(repos, cfg.SecretKey, cfg.AccessTokenValidity),
		DB:      services.NewDBService(repos, uploader, app.logger),
	}, app.hub, httpapi.Options{Addr: cfg.HTTPAddr, AllowedOrigins: cfg.AllowedOrigins}, app.logger)

	return nil
}

func (app *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if app.config.LockBackend != "redis" {
		return lock.NewLocal(), nil
	}
	client, err := lock.NewRedisClient(ctx, app.config.RedisURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client)
	return lock.NewRedis(client, "srbio:lock:", app.config.LockTTL), nil
}

// prober prefers the driver's own reachability check when it has one.
func (app *App) prober(dialer terminal.Dialer) health.Prober {
	if p, ok := dialer.(health.Prober); ok {
		return p
	}
	return health.NewTCPProber(app.config.ProbeTimeout)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run starts the servers and the monitor and blocks until ctx is done, a
// signal arrives, or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "terminal_driver", app.config.TerminalDriver, "db_driver", app.config.DatabaseDriver)

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				fail(fmt.Errorf("%s: %w", name, err))
			}
		}()
	}

	start("realtime hub", func(ctx context.Context) error { app.hub.Run(ctx); return nil })
	start("health monitor", func(ctx context.Context) error { app.monitor.Run(ctx); return nil })
	start("grpc server", app.health.Run)
	start("http server", app.http.Run)

	wg.Wait()
	app.Close()
	app.logger.Info(context.Background(), "App stopped")
	return firstErr
}

// Close releases the store and backend connections in reverse order.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "err", err)
		}
	}
	app.closers = nil
}
