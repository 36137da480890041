package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/railbook/config"
	"github.com/ds124wfegd/railbook/internal/catalog"
	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	redisstore "github.com/ds124wfegd/railbook/internal/database/redis"
	"github.com/ds124wfegd/railbook/internal/fare"
	"github.com/ds124wfegd/railbook/internal/policy"
	"github.com/ds124wfegd/railbook/internal/seatlayout"
	"github.com/ds124wfegd/railbook/internal/service"
	"github.com/ds124wfegd/railbook/internal/transport"
	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/ds124wfegd/railbook/internal/worker"

	"github.com/ds124wfegd/railbook/pkg/events"
	"github.com/ds124wfegd/railbook/pkg/llm"
	"github.com/ds124wfegd/railbook/pkg/postgres"
	"github.com/ds124wfegd/railbook/pkg/queue"
	"github.com/ds124wfegd/railbook/pkg/redis"
	"github.com/ds124wfegd/railbook/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func setupLogging(cfg *config.LogConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func NewServer(cfg *config.Config) {

	setupLogging(&cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(ctx, db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	trainRepo := repository.NewTrainRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	userRepo := repository.NewUserRepository(db)

	if _, err := catalog.Seed(ctx, cfg.Catalog.SeedFile, trainRepo); err != nil {
		logrus.Fatalf("Failed to seed train catalog: %v", err)
	}

	// Initialize Redis: checkout sessions, seat holds and the task queue share one client
	redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	sessions := redisstore.NewSessionStore(redisClient, cfg.Booking.SessionTTL)
	var holds service.SeatHolder
	if cfg.Booking.SeatHoldTTL > 0 {
		holds = redisstore.NewSeatHoldStore(redisClient, cfg.Booking.SeatHoldTTL)
	} else {
		logrus.Info("Seat holds disabled")
	}

	// Booking events
	publisher, err := events.New(&cfg.Events)
	if err != nil {
		logrus.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize Telegram bot
	var notifierBot queue.TelegramBot
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBot(cfg.Telegram.BotToken)
		if err != nil {
			logrus.Errorf("Telegram bot unavailable, notifications disabled: %v", err)
		} else {
			notifierBot = bot
			go bot.Listen(ctx)
		}
	} else {
		logrus.Warn("Telegram bot disabled, notifications will not be sent")
	}

	// Task queue
	redisQueue := queue.NewRedisQueue(redisClient, &queue.RedisQueueConfig{
		Name:          cfg.Queue.Name,
		MaxRetries:    cfg.Queue.MaxRetries,
		BaseDelay:     cfg.Queue.BaseDelay,
		EnableMetrics: true,
	})
	taskPublisher := service.NewQueueAdapter(redisQueue)

	taskHandler := queue.NewTaskHandler(bookingRepo, userRepo, notifierBot)
	if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
		logrus.Fatalf("Failed to start queue subscriber: %v", err)
	}
	logrus.Info("Queue subscriber started")

	// Booking access policy
	authz, err := policy.NewAuthorizer(ctx)
	if err != nil {
		logrus.Fatalf("Failed to prepare booking policy: %v", err)
	}

	// Prompt-completion service
	var completer service.Completer
	if cfg.Assistant.Enabled() {
		completer = llm.NewClient(llm.Config{
			BaseURL: cfg.Assistant.BaseURL,
			APIKey:  cfg.Assistant.APIKey,
			Model:   cfg.Assistant.Model,
			Timeout: cfg.Assistant.Timeout,
		})
		logrus.WithField("model", cfg.Assistant.Model).Info("Assistant enabled")
	} else {
		logrus.Warn("Assistant API key not provided, AI features disabled")
	}

	// Initialize services
	generator := seatlayout.NewGenerator(seatlayout.WithAvailability(cfg.Booking.Availability))
	fares := fare.NewCalculator(cfg.Booking.ConvenienceFeeBase, cfg.Booking.ConvenienceFeePerPassenger)

	catalogService := service.NewCatalogService(trainRepo, generator, holds)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Trains:    trainRepo,
		Bookings:  bookingRepo,
		Profiles:  profileRepo,
		Users:     userRepo,
		Generator: generator,
		Fares:     fares,
		Sessions:  sessions,
		Holds:     holds,
		Events:    publisher,
		Tasks:     taskPublisher,
	}, service.CheckoutConfig{
		MaxSeats:             cfg.Booking.MaxSeats,
		RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
	})
	bookingService := service.NewBookingService(bookingRepo, authz, publisher, taskPublisher)
	profileService := service.NewProfileService(profileRepo)
	userService := service.NewUserService(userRepo)
	assistantService := service.NewAssistantService(completer, trainRepo)
	queueAdminService := service.NewQueueAdminService(redisQueue, authz)

	// Journey reminders
	reminderWorker := worker.NewJourneyReminderWorker(bookingRepo, taskPublisher, cfg.Worker.ReminderInterval, cfg.Worker.ReminderWindow)
	go reminderWorker.Start(ctx)
	logrus.Info("Journey reminder worker started")

	// Initialize handlers
	handlers := transport.Handlers{
		Catalog:   transport.NewCatalogHandler(catalogService),
		Checkout:  transport.NewCheckoutHandler(checkoutService),
		Booking:   transport.NewBookingHandler(bookingService),
		Profile:   transport.NewProfileHandler(profileService),
		User:      transport.NewUserHandler(userService),
		Assistant: transport.NewAssistantHandler(assistantService),
		Admin:     transport.NewAdminHandler(queueAdminService),
	}
	verifier := middleware.NewTokenVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)

	// Setup HTTP server
	if cfg.Server.Env == "production" || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(handlers, verifier, cfg.Server.Timeout)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":    cfg.Server.Port,
		"version": cfg.Server.AppVersion,
	}).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	cancel()
	if err := redisQueue.Close(); err != nil {
		logrus.Errorf("error occured on queue shutting down: %s", err.Error())
	}
}
