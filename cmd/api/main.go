package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendazap/internal/bot"
	"vendazap/internal/catalog"
	"vendazap/internal/config"
	"vendazap/internal/fuzzy"
	"vendazap/internal/http/middleware"
	"vendazap/internal/intent"
	"vendazap/internal/kb"
	"vendazap/internal/session"
	"vendazap/internal/telemetry"
	"vendazap/internal/webhook"
	"vendazap/internal/whatsapp"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Initialize telemetry (optional service)
	shutdown, enabled, err := telemetry.Init()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		shutdown = func() {}
	} else if enabled {
		log.Info().Msg("Telemetry initialized successfully")
	} else {
		log.Info().Msg("Telemetry disabled")
	}
	defer shutdown()

	// Initialize database
	database, err := catalog.Connect(cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := catalog.AutoMigrate(database); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := catalog.Seed(database); err != nil {
		log.Warn().Err(err).Msg("Failed to seed demo catalog")
	}

	// Core services
	engine := fuzzy.NewEngine()
	catalogService := catalog.NewService(database, engine)

	knowledge, err := kb.Load(cfg.Bot.KnowledgePath, engine, catalogService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load knowledge base")
	}
	log.Info().Int("terms", knowledge.Size()).Msg("📚 Knowledge base loaded")

	oracle, err := intent.NewOpenAIOracle(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.PromptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize intent oracle")
	}
	resolver := intent.NewResolver(oracle)

	// Session store: Redis primário com fallback para arquivo local.
	fileStore, err := session.NewFileStore(cfg.Bot.SessionDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize file session store")
	}

	var store session.Store = fileStore
	if redisClient, err := cfg.Redis.NewClient(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Redis unavailable, sessions will use local files only")
	} else {
		store = session.NewFallbackStore(session.NewRedisStore(redisClient), fileStore)
		log.Info().Msg("Session store connected to Redis")
	}

	messenger := whatsapp.NewClient(cfg.WhatsApp)
	botService := bot.NewService(store, resolver, catalogService, knowledge, messenger, engine)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Telemetry())

	webhook.NewHandler(botService).Register(e)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Server started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
