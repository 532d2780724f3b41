package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"judoclub/internal/attendance"
	"judoclub/internal/booking"
	"judoclub/internal/checkin"
	"judoclub/internal/config"
	"judoclub/internal/db"
	"judoclub/internal/email"
	"judoclub/internal/events"
	"judoclub/internal/logger"
	"judoclub/internal/member"
	"judoclub/internal/notify"
	"judoclub/internal/schedule"
	"judoclub/internal/server"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type repositories struct {
	members    member.Repository
	templates  schedule.TemplateRepository
	bookings   booking.Repository
	attendance attendance.Repository
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, *sqlx.DB, error) {
	if cfg.StorageBackend == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repositories{
			members:    member.NewMemoryRepository(),
			templates:  schedule.NewMemoryRepository(),
			bookings:   booking.NewMemoryRepository(),
			attendance: attendance.NewMemoryRepository(),
		}, nil, nil
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, nil, err
	}
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		database.Close()
		return repositories{}, nil, err
	}

	return repositories{
		members:    member.NewRepository(database),
		templates:  schedule.NewRepository(database),
		bookings:   booking.NewRepository(database),
		attendance: attendance.NewRepository(database),
	}, database, nil
}

func openPublisher(cfg *config.Config) events.Publisher {
	if cfg.EventsBackend != "amqp" {
		return events.LogPublisher{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Error("AMQP unavailable, falling back to log events", "error", err)
		return events.LogPublisher{}
	}
	logger.Info("Publishing events to AMQP", "exchange", cfg.AMQPExchange)
	return pub
}

// @title Judo Club API
// @version 1.0
// @description Class scheduling, bookings and QR check-in for a martial arts club.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Info("Starting Judo Club application", "env", cfg.Env, "storage", cfg.StorageBackend)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("Invalid STUDIO_TIMEZONE %q: %v", cfg.StudioTimezone, err)
	}

	repos, database, err := openRepositories(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	var rdb *redis.Client
	if cfg.TokenStore == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	publisher := openPublisher(cfg)
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mailer *email.Service
	var notifyMailer notify.Mailer
	var sender server.Sender
	if rdb != nil {
		mailer = email.New(rdb, email.Options{
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
			SMTPHost: cfg.SMTPHost,
			SMTPPort: cfg.SMTPPort,
			SMTPUser: cfg.SMTPUser,
			SMTPPass: cfg.SMTPPass,
		}, loc)
		notifyMailer = mailer
		sender = mailer
		go mailer.Start(ctx)
		logger.Info("Email service initialized")
	} else {
		logger.Warn("Redis disabled, booking emails are not sent")
	}

	memberService := member.NewService(repos.members, cfg.JWTSecret, cfg.AdminEmail)
	scheduleService := schedule.NewService(repos.templates, loc)
	notifier := notify.New(memberService, notifyMailer, publisher, time.Now)
	bookingService := booking.NewService(repos.bookings, scheduleService, notifier)

	policy := attendance.Policy{
		Early:  cfg.CheckInEarly,
		Grace:  cfg.CheckInGrace,
		Points: cfg.AttendancePoint,
	}
	tracker := attendance.NewTracker(repos.attendance, repos.bookings, scheduleService, policy)
	go tracker.Run(ctx, cfg.MaterializeInterval, cfg.MaterializeLookback, time.Now)

	var tokens checkin.Store
	if rdb != nil {
		tokens = checkin.NewRedisStore(rdb)
	} else {
		tokens = checkin.NewMemoryStore()
	}
	checkinService, err := checkin.NewService(tokens, checkin.Options{
		Secret: cfg.CheckInSecret,
		TTL:    cfg.CheckInTokenTTL,
	}, tracker, bookingService, memberService, publisher)
	if err != nil {
		logger.Fatalf("Failed to create check-in service: %v", err)
	}

	checks := server.Checks{}
	if database != nil {
		checks.Database = database.PingContext
	}
	if rdb != nil {
		checks.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		JWTSecret:      cfg.JWTSecret,
		Storage:        cfg.StorageBackend,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Production:     cfg.IsProduction(),
	}, server.Handlers{
		Members:    member.NewHandler(memberService),
		Schedule:   schedule.NewHandler(scheduleService, time.Now),
		Bookings:   booking.NewHandler(bookingService, time.Now, cfg.RecurringHorizonWeeks),
		Attendance: attendance.NewHandler(tracker, memberService, loc, time.Now),
		CheckIn:    checkin.NewHandler(checkinService, time.Now),
	}, checks, sender)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
