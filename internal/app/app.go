// Package app assembles the bot from its configured parts and runs the two
// long-lived surfaces: the Telegram long-poll loop and the operational HTTP
// listener (health, readiness, metrics).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxcodehq/voxcode/internal/agent"
	"github.com/voxcodehq/voxcode/internal/audio"
	"github.com/voxcodehq/voxcode/internal/config"
	"github.com/voxcodehq/voxcode/internal/gitops"
	"github.com/voxcodehq/voxcode/internal/health"
	"github.com/voxcodehq/voxcode/internal/observe"
	"github.com/voxcodehq/voxcode/internal/resilience"
	"github.com/voxcodehq/voxcode/internal/session"
	"github.com/voxcodehq/voxcode/internal/telegram"
	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

const shutdownGrace = 10 * time.Second

// App owns the assembled services and their lifecycles.
type App struct {
	cfg   config.Config
	store session.Store
	bot   *telegram.Bot
	srv   *http.Server
	log   *slog.Logger
}

// New wires the configured providers, stores, and the bot together. It does
// not start anything; call Run.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	transcriber, err := buildTranscriber(cfg.Providers)
	if err != nil {
		store.Close()
		return nil, err
	}

	converter := audio.NewConverter(cfg.Agent.FfmpegBinary)

	executor, err := agent.NewExecutor(cfg.Agent.Binary, cfg.Agent.Workspace,
		agent.WithMaxTurns(cfg.Agent.MaxTurns),
		agent.WithTimeout(cfg.Agent.Timeout),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	sessions := agent.NewSessionDir(cfg.Agent.SessionsDir)
	git := gitops.New(cfg.Agent.Workspace)

	bot, err := telegram.New(telegram.Options{
		Token:              cfg.Telegram.Token,
		AllowedUserIDs:     cfg.Telegram.AllowedUserIDs,
		PollTimeoutSeconds: cfg.Telegram.PollTimeoutSeconds,
		Workspace:          cfg.Agent.Workspace,
		AgentBinary:        cfg.Agent.Binary,
		GitAuthorName:      cfg.Git.AuthorName,
		GitAuthorEmail:     cfg.Git.AuthorEmail,
	}, telegram.Deps{
		Store:       store,
		Transcriber: transcriber,
		Converter:   converter,
		Executor:    executor,
		Sessions:    sessions,
		Git:         git,
		Metrics:     observe.DefaultMetrics(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		cfg:   cfg,
		store: store,
		bot:   bot,
		srv:   buildServer(cfg, store),
		log:   slog.Default().With("component", "app"),
	}, nil
}

// Bot exposes the assembled bot, mainly for the startup banner.
func (a *App) Bot() *telegram.Bot { return a.bot }

// buildStore constructs the configured session store backend.
func buildStore(ctx context.Context, cfg config.StorageConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.StoragePostgres:
		return session.NewPostgresStore(ctx, cfg.PostgresDSN)
	case config.StorageFile, "":
		return session.NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", cfg.Backend)
	}
}

// buildTranscriber builds the provider chain: the primary STT provider plus
// the optional fallback, wrapped in breakers.
func buildTranscriber(cfg config.ProvidersConfig) (stt.Provider, error) {
	registry := config.DefaultRegistry()

	primary, err := registry.BuildSTT(cfg.STT)
	if err != nil {
		return nil, err
	}
	providers := []stt.Provider{primary}

	if cfg.Fallback.Name != "" {
		fallback, err := registry.BuildSTT(cfg.Fallback)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fallback)
	}
	return resilience.NewTranscriber(providers...)
}

// buildServer assembles the operational HTTP listener.
func buildServer(cfg config.Config, store session.Store) *http.Server {
	checkers := []health.Checker{
		health.Binary("agent", cfg.Agent.Binary),
		health.Binary("ffmpeg", cfg.Agent.FfmpegBinary),
		health.Binary("git", "git"),
		health.Workspace(cfg.Agent.Workspace),
		health.Store(store),
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts the bot and the HTTP listener and blocks until ctx is cancelled
// or either surface fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		a.log.Info("http listener started", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases held resources, notably the session store.
func (a *App) Close() error {
	return a.store.Close()
}
