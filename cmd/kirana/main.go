package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/kirana/adapters/llm"
	mongoadapter "github.com/satriahrh/kirana/adapters/mongo"
	speechadapter "github.com/satriahrh/kirana/adapters/speech"
	"github.com/satriahrh/kirana/domain/repositories"
	"github.com/satriahrh/kirana/internal/api"
	"github.com/satriahrh/kirana/internal/speech"
	"github.com/satriahrh/kirana/internal/websocket"
	"github.com/satriahrh/kirana/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Session store, hydrated from MongoDB when available
	store := usecase.NewSessionStore(logger)
	sessionRepo := initPersistence(ctx, store, logger)

	// LLM provider. A missing key does not stop the server; every turn then
	// answers with the configuration instruction instead.
	provider := initProvider(logger)

	// Core services
	images := usecase.NewImageWorkflow(store, provider, logger)

	hub := websocket.NewHub(store, logger)
	orchestrator := usecase.NewOrchestrator(store, provider, hub, images, logger)
	hub.SetCore(orchestrator, images)
	orchestrator.SetOnBanner(hub.BroadcastBanner)

	// Voice channel. Missing speech engines disable voice, nothing else.
	initVoice(ctx, hub, orchestrator, logger)

	// Fan out every store change to clients, and to MongoDB when configured.
	// Saves replace the stored set wholesale, so they go through a single
	// autosave worker instead of one goroutine per change.
	var autosave *usecase.Autosaver
	if sessionRepo != nil {
		autosave = usecase.NewAutosaver(store, sessionRepo, logger)
		go autosave.Run(ctx)
	}
	store.SetOnChange(func() {
		hub.BroadcastSessions()
		if autosave != nil {
			autosave.Trigger()
		}
	})

	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, store, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initPersistence connects to MongoDB and hydrates the store. Persistence is
// best effort: when the database is unreachable the assistant runs in memory.
func initPersistence(ctx context.Context, store *usecase.SessionStore, logger *zap.Logger) repositories.SessionRepository {
	db, err := mongoadapter.NewDatabase(ctx, logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, sessions will not persist", zap.Error(err))
		return nil
	}

	repo := mongoadapter.NewSessionRepository(db)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sessions, activeID, err := repo.Load(loadCtx)
	if err != nil {
		logger.Warn("Failed to load persisted sessions", zap.Error(err))
		return repo
	}
	store.Hydrate(sessions, activeID)
	return repo
}

func initProvider(logger *zap.Logger) repositories.Provider {
	provider, err := llm.NewGeminiProvider(logger)
	if err != nil {
		logger.Warn("LLM provider not configured", zap.Error(err))
		return llm.NewUnconfiguredProvider()
	}
	return provider
}

// initVoice wires the wake-word speech channel when both engines can be
// built. Browser microphone audio reaches the recognizer through the hub;
// synthesized audio flows back the same way.
func initVoice(ctx context.Context, hub *websocket.Hub, orchestrator *usecase.Orchestrator, logger *zap.Logger) {
	recognizer := speechadapter.NewGoogleRecognizer(0, "", logger)

	synthesizer, err := speechadapter.NewElevenLabsSynthesizer(speechadapter.ElevenLabsConfig{
		APIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		VoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
	}, logger)
	if err != nil {
		logger.Warn("Voice disabled", zap.Error(err))
		return
	}
	synthesizer.SetAudioOut(hub.BroadcastSpeechAudio)

	channel, err := speech.NewChannel(recognizer, synthesizer, speech.Config{
		WakePhrase: os.Getenv("KIRANA_WAKE_PHRASE"),
	}, logger)
	if err != nil {
		logger.Warn("Voice disabled", zap.Error(err))
		return
	}

	channel.SetOnUtterance(func(text string) {
		orchestrator.HandleVoiceUtterance(context.Background(), text)
	})
	channel.SetOnStatus(hub.BroadcastVoiceStatus)
	channel.SetOnError(func(kind string) {
		hub.BroadcastBanner("Voice recognition hit a problem (" + kind + "). The microphone was turned off.")
	})

	orchestrator.SetVoice(channel)
	hub.SetVoice(channel, recognizer)

	go channel.Run(ctx)
	logger.Info("Voice channel enabled")
}
