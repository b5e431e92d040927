package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dcode-github/property_marketplace/booking"
	"github.com/dcode-github/property_marketplace/config"
	"github.com/dcode-github/property_marketplace/controllers"
	"github.com/dcode-github/property_marketplace/lifecycle"
	"github.com/dcode-github/property_marketplace/middleware"
	"github.com/dcode-github/property_marketplace/notify"
	"github.com/dcode-github/property_marketplace/routes"
	"github.com/dcode-github/property_marketplace/scheduler"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/urfave/cli"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Name = "marketplace"
	app.Usage = "property marketplace API, deletion sweeper and notification worker"

	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API (default)",
			Action: func(clictx *cli.Context) error { return run(serve) },
		},
		{
			Name:   "sweep",
			Usage:  "Delete rejected listings whose grace period has passed, then exit",
			Action: func(clictx *cli.Context) error { return run(sweep) },
		},
		{
			Name:   "notifier",
			Usage:  "Consume queued notifications and send them by mail",
			Action: func(clictx *cli.Context) error { return run(notifier) },
		},
	}
	app.Action = func(clictx *cli.Context) error { return run(serve) }

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cmd func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error) error {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, cfg, logger)
}

type stores struct {
	props *store.MongoPropertyStore
	appts *store.MongoAppointmentStore
	users *store.MongoUserStore
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*mongo.Client, *stores, error) {
	client, err := config.ConnectDB(ctx, cfg.MongoURI, logger)
	if err != nil {
		return nil, nil, err
	}
	colls := config.InitCollections(client, cfg.DBName)
	s := &stores{
		props: store.NewMongoPropertyStore(colls.Properties),
		appts: store.NewMongoAppointmentStore(colls.Appointments),
		users: store.NewMongoUserStore(colls.Users),
	}
	for name, ensure := range map[string]func(context.Context) error{
		"properties":   s.props.EnsureIndexes,
		"appointments": s.appts.EnsureIndexes,
		"users":        s.users.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			config.CloseDBConnection(client, logger)
			return nil, nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return client, s, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	client, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer config.CloseDBConnection(client, logger)

	redisClient := config.InitRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.RabbitMQURL != "" {
		publisher := notify.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue, logger)
		defer publisher.Close()
		notifier = publisher
	}

	users := store.NewCachedUserStore(db.users, 1000, 5*time.Minute)
	defer users.Stop()

	stats := controllers.NewStatsAggregator(db.props, db.appts, redisClient, 30*time.Second, logger)
	deletions := scheduler.NewManager(db.props, logger, scheduler.WithOnDeleted(func(primitive.ObjectID) {
		stats.Invalidate(context.Background())
	}))
	tokens := utils.NewTokenIssuer(cfg.JWTKey, cfg.TokenTTL)

	api := &controllers.API{
		Properties:   lifecycle.NewService(db.props, deletions, logger, lifecycle.WithGracePeriod(cfg.DeletionGracePeriod)),
		Bookings:     booking.NewService(db.appts, db.props, users, notifier, logger),
		Users:        users,
		Tokens:       tokens,
		Cache:        controllers.NewListingCache(redisClient, cfg.CacheTTL, logger),
		Stats:        stats,
		Logger:       logger,
		Production:   cfg.Production(),
		IsAdminEmail: cfg.IsAdminEmail,
	}

	router := mux.NewRouter()
	routes.Routes(router, api, tokens, redisClient, cfg.RateLimit, logger)

	corsOptions := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := middleware.RequestLogger(logger)(corsOptions.Handler(router))

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		deletions.Run(ctx, cfg.DeletionSweepInterval)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	<-sweepDone
	logger.Info("server gracefully stopped")
	return nil
}

func sweep(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer config.CloseDBConnection(client, logger)

	m := scheduler.NewManager(db.props, logger)
	defer m.Stop()
	removed, err := m.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	logger.Info("sweep finished", zap.Int("removed", removed))
	return nil
}

func notifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL not set in environment")
	}
	var mailer notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}
	consumer := notify.NewConsumer(cfg.RabbitMQURL, cfg.NotifyQueue, mailer, logger)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
