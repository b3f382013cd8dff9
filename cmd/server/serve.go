package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/parabrain/internal/agentresult"
	"github.com/lalith-99/parabrain/internal/api"
	"github.com/lalith-99/parabrain/internal/chat"
	"github.com/lalith-99/parabrain/internal/config"
	"github.com/lalith-99/parabrain/internal/db"
	"github.com/lalith-99/parabrain/internal/llm"
	"github.com/lalith-99/parabrain/internal/notify"
	"github.com/lalith-99/parabrain/internal/observ"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/lalith-99/parabrain/internal/repository/memory"
	"github.com/lalith-99/parabrain/internal/repository/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

// app holds the shared state the composition root owns. close releases
// it in reverse order of acquisition.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *db.DB
	store   *repository.Store
	convs   repository.ConversationStore
	results agentresult.Store
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup loads config, builds the logger and opens the stores selected by
// STORAGE_BACKEND and CONVERSATION_BACKEND.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if cfg.NeedsDatabase() {
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = database
		a.closers = append(a.closers, database.Close)
	}

	if cfg.StorageBackend == config.BackendPostgres {
		a.store = postgres.NewStore(a.db.Pool())
	} else {
		a.store = memory.NewStore()
	}
	if cfg.ConversationBackend == config.BackendPostgres {
		a.convs = postgres.NewConversationStore(a.db.SQLX())
	} else {
		a.convs = memory.NewConversationStore()
	}

	logger.Info("stores initialized",
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("conversation_backend", cfg.ConversationBackend),
	)
	return a, nil
}

func serve(ctx context.Context) error {
	// Cancelled on SIGINT/SIGTERM; the server then drains in-flight
	// requests before the stores close.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	if a.db != nil {
		if err := a.db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if cfg.RedisURL != "" {
		rs, err := agentresult.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rs.Close()
		a.results = rs
	} else {
		a.results = agentresult.NewMemoryStore()
	}

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, chat turns will fail")
	}
	client := llm.NewOpenAI(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
	}, logger)

	orch := chat.NewOrchestrator(a.convs, chat.NewAssembler(a.store.Projects, a.store.Notes, a.convs), client, logger)

	var health func(context.Context) error
	if a.db != nil {
		health = a.db.Health
	}
	router := api.NewRouter(api.Deps{
		Store:          a.store,
		Convs:          a.convs,
		Orchestrator:   orch,
		Results:        a.results,
		Notifier:       notify.New(cfg.WebhookURL, cfg.WebhookTimeout, logger),
		Health:         health,
		JWTSecret:      cfg.JWTSecret,
		CallbackSecret: cfg.AgentCallbackSecret,
		TokenTTL:       cfg.TokenTTL,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting parabrain",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
