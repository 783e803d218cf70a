package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"hazard-notification-sse/internal/application/facade"
	"hazard-notification-sse/internal/application/poll"
	"hazard-notification-sse/internal/infrastructure/config"
	"hazard-notification-sse/internal/infrastructure/hub"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/infrastructure/push"
	"hazard-notification-sse/internal/infrastructure/server"
	"hazard-notification-sse/internal/infrastructure/store/postgres"
	"hazard-notification-sse/internal/infrastructure/store/sqlite"
	"hazard-notification-sse/internal/port/outbound"
)

func main() {
	configPath := flag.String("config", os.Getenv("HAZARD_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogrusLogger(cfg.Logger("hazard-notification-sse"))

	ctx := context.Background()
	sctx := WithSignal(ctx)

	store, err := openStore(sctx, cfg.Store, log)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	clock := clockwork.NewRealClock()
	hubInstance := hub.New(log,
		hub.WithClock(clock),
		hub.WithHeartbeatInterval(cfg.Stream.HeartbeatInterval),
		hub.WithWriteTimeout(cfg.Stream.WriteTimeout),
	)

	// Start the hub first
	if err := hubInstance.Start(ctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}

	serviceOpts := []facade.Option{facade.WithClock(clock)}
	if cfg.Push.Enabled {
		serviceOpts = append(serviceOpts, facade.WithMobilePusher(push.NewLogPusher(log)))
	}
	hazards := facade.NewHazardApplicationService(store, hubInstance, log, serviceOpts...)
	resolver := poll.NewResolver(store, log,
		poll.WithClock(clock),
		poll.WithQueryTimeout(cfg.Poll.QueryTimeout),
	)

	router := InitRouter(routerDeps{
		hub:     hubInstance,
		hazards: hazards,
		polls:   resolver,
		store:   store,
		clock:   clock,
		log:     log,
	})
	httpSrv := server.NewHTTPServer(router, server.HTTPConfig{
		Addr:        cfg.Server.Addr,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	})
	log.Infof("listening on %s (store: %s)", cfg.Server.Addr, cfg.Store.Driver)

	app := newApplication(log, httpSrv, hubInstance, hazards, cfg.Server)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (outbound.HazardRepository, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Connect(ctx, cfg.DSN, log)
	default:
		return sqlite.Open(ctx, cfg.DSN)
	}
}

type Application struct {
	logger  logger.Logger
	httpSrv server.Server
	hub     *hub.Hub
	hazards *facade.HazardApplicationService
	cfg     config.ServerConfig
}

func newApplication(
	logger logger.Logger,
	httpSrv *server.HTTPServer,
	hubInstance *hub.Hub,
	hazards *facade.HazardApplicationService,
	cfg config.ServerConfig,
) *Application {
	return &Application{
		logger:  logger.WithField("app", "hazard-sse"),
		httpSrv: httpSrv,
		hub:     hubInstance,
		hazards: hazards,
		cfg:     cfg,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	// egCtx also ends when the listener fails, so shutdown never waits on a
	// signal that will not come.
	eg.Go(func() error {
		<-egCtx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.cfg.ShutdownTimeout,
		)
		defer cancel()

		// Stop hub first so open streams end and their handlers return
		if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		if err := app.httpSrv.Stop(gracefulshutdownCtx); err != nil {
			return err
		}

		if err := app.hazards.Wait(gracefulshutdownCtx); err != nil {
			app.logger.Warnf("pending announcements dropped: %v", err)
		}
		return nil
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
