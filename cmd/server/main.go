package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/config"
	"github.com/linknest/linknest-api/internal/handlers"
	"github.com/linknest/linknest-api/internal/invitation"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/middleware"
	"github.com/linknest/linknest-api/internal/migration"
	"github.com/linknest/linknest-api/internal/notification"
	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/linknest/linknest-api/internal/routes"
	"github.com/linknest/linknest-api/internal/shortener"
	"github.com/linknest/linknest-api/internal/token"
	"github.com/rs/zerolog"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	if err := migration.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Create the application instance.
	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all repositories, services and HTTP handlers.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	userRepo := repository.NewUserRepository(app.db)
	orgRepo := repository.NewOrganizationRepository(app.db)
	memberRepo := repository.NewMembershipRepository(app.db)
	inviteRepo := repository.NewInviteRepository(app.db)
	otpRepo := repository.NewOTPRepository(app.db)
	namespaceRepo := repository.NewNamespaceRepository(app.db)
	shortURLRepo := repository.NewShortURLRepository(app.db)

	// Mailer for invites and verification codes
	mailer, err := notification.NewSMTPMailer(app.config.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure mailer")
	}
	notifier := notification.NewService(mailer, app.config.Email.InviteURLTemplate, logger)

	// Domain services
	evaluator := authz.NewEvaluator(orgRepo, memberRepo, namespaceRepo, shortURLRepo)
	ledger := membership.NewLedger(orgRepo, memberRepo, logger)
	issuer := token.NewJWTIssuer(app.config.JWTSecret)
	otpService := otp.NewService(otpRepo, logger)
	inviteService := invitation.NewService(inviteRepo, userRepo, orgRepo, memberRepo, evaluator, notifier, logger)
	registrationService := registration.NewService(userRepo, ledger, inviteService, otpService, notifier, issuer, logger)
	shortenerService, err := shortener.NewService(namespaceRepo, shortURLRepo, evaluator, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize short code generator")
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, registrationService, issuer, otpService, app.config.JWTSecret, logger)
	otpHandler := handlers.NewOTPHandler(registrationService, otpService, logger)
	inviteHandler := handlers.NewInviteHandler(inviteService, registrationService, logger)
	orgHandler := handlers.NewOrganizationHandler(ledger, orgRepo, userRepo, evaluator, logger)
	linkHandler := handlers.NewLinkHandler(shortenerService, logger)

	return routes.NewRouter(authHandler, otpHandler, inviteHandler, orgHandler, linkHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
