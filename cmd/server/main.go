package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/catalog"
	"github.com/alextreichler/detailacademy/internal/checkout"
	"github.com/alextreichler/detailacademy/internal/config"
	"github.com/alextreichler/detailacademy/internal/events"
	"github.com/alextreichler/detailacademy/internal/guest"
	"github.com/alextreichler/detailacademy/internal/handlers"
	"github.com/alextreichler/detailacademy/internal/metrics"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/notify"
	"github.com/alextreichler/detailacademy/internal/payment"
	"github.com/alextreichler/detailacademy/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	// 2. Metrics
	metrics.Register()
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("Starting Prometheus metrics server", slog.String("address", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	// 3. API client and services
	client := api.New(api.Options{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, api.NewStaticToken(cfg.API.Token), logger)
	retry := guest.RetryConfig{
		Attempts: cfg.API.RetryAttempts,
		Delay:    cfg.API.RetryDelay,
		MaxDelay: cfg.API.RetryMaxDelay,
	}
	courses := catalog.NewService(client)
	purchases := guest.NewPurchaseService(client, retry)

	processor, err := payment.New(cfg.PaymentMode, client, cfg.PaymentSimDelay)
	if err != nil {
		logger.Error("Failed to set up payments", "error", err)
		os.Exit(1)
	}

	// 4. Ledger DB
	db, err := store.NewStore(cfg.Ledger.Path)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 5. Checkout side effects
	publisher := newPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.Mail.SendGridKey != "" {
		mailer = notify.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.From)
	}

	mode, _ := checkout.ParsePricingMode(cfg.MembershipPricing)
	orchestrator := checkout.NewOrchestrator(checkout.Options{
		Purchases:     purchases,
		Subscriptions: guest.NewSubscriptionService(client, retry),
		Bookings:      guest.NewBookingService(client, retry),
		Processor:     processor,
		Ledger:        db,
		Pricing: checkout.Pricing{
			Mode:         mode,
			PassCents:    models.Price(cfg.PassPrice).Cents(),
			MonthlyCents: models.Price(cfg.MonthlyPrice).Cents(),
		},
		Events:     publisher,
		Mailer:     mailer,
		StaleAfter: cfg.Ledger.StaleAfter,
		Logger:     logger,
	})

	// 6. Ledger pruning
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Ledger.PruneSchedule, func() {
		n, err := db.Prune(context.Background(), cfg.Ledger.Retention)
		if err != nil {
			logger.Error("Failed to prune payment ledger", "error", err)
			return
		}
		logger.Info("Pruned payment ledger", "removed", n)
	}); err != nil {
		logger.Error("Invalid ledger prune schedule", "schedule", cfg.Ledger.PruneSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// 7. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 8. Init Templates
	templates := handlers.NewTemplateCache()
	templates.AddFunc("supportEmail", func() string { return cfg.SupportEmail })
	if err := templates.Load(); err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	// 9. Setup Handlers
	pages := handlers.Pages{Templates: templates, SessionStore: sessionStore}
	guard := handlers.NewSubmitGuard(sessionStore, cfg.SubmitGuard)

	mux := http.NewServeMux()
	handlers.Routes(mux,
		&handlers.CatalogHandler{Pages: pages, Catalog: courses},
		&handlers.CheckoutHandler{
			Pages:        pages,
			Catalog:      courses,
			Instructors:  guest.NewInstructorService(client),
			Access:       purchases,
			Orchestrator: orchestrator,
		},
		guard,
	)

	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// Chain: Logger -> Security Headers -> CSRF -> Mux
	handler := handlers.LoggingMiddleware(
		handlers.SecurityHeadersMiddleware(
			CSRF(mux),
		),
	)

	// 10. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "api", cfg.API.BaseURL, "payments", cfg.PaymentMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	<-scheduler.Stop().Done()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", "error", err)
	}

	logger.Info("Server exited gracefully.")
}

func setupLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	p, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Version: cfg.Kafka.Version,
	}, logger)
	if err != nil {
		logger.Error("Kafka unavailable, logging checkout events instead", "error", err)
		return events.NewLogPublisher(logger)
	}
	return p
}
