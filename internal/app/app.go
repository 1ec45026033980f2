package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/polymorphcorp/profilegpt/internal/config"
	"github.com/polymorphcorp/profilegpt/internal/http/handler"
	"github.com/polymorphcorp/profilegpt/internal/http/router"
	"github.com/polymorphcorp/profilegpt/internal/llm"
	"github.com/polymorphcorp/profilegpt/internal/notify"
	"github.com/polymorphcorp/profilegpt/internal/observability"
	"github.com/polymorphcorp/profilegpt/internal/repository"
	"github.com/polymorphcorp/profilegpt/internal/service"
	"github.com/polymorphcorp/profilegpt/internal/session"
)

// App is the composition root: every dependency is built here once and
// handed to the components that need it.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Redis         *redis.Client
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
	}

	sessions := session.NewStore(redisClient, "profilegpt", cfg.SessionTTL)
	requests := repository.NewExtensionRepository(cfg.DataDir)
	grants := repository.NewApprovalRepository(cfg.DataDir)
	usage := repository.NewUsageRepository(cfg.DataDir)
	interactions := repository.NewInteractionRepository(cfg.DataDir)

	persona := llm.NewPersonaSource(cfg.PersonaFilePath)
	assistant := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, persona, logger)

	mailer := notify.NewMailer(notify.Options{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		UseTLS:     cfg.SMTPUseTLS,
		AdminEmail: cfg.AdminEmail,
		AppURL:     cfg.AppURL,
		Timeout:    cfg.NotifyTimeout,
	}, logger)

	quota := service.NewQuotaService(grants, cfg.MaxQueriesPerSession)
	guard := service.NewSubmissionGuard(redisClient, "profilegpt")
	extensions := service.NewExtensionService(requests, grants, sessions, guard, mailer, logger)
	chat := service.NewChatService(sessions, quota, extensions, assistant,
		usage, interactions, logger, cfg.MaxQueryLength, cfg.MaxJobDescriptionLength)

	h := router.NewRouter(router.Dependencies{
		ChatHandler:     handler.NewChatHandler(chat, quota, sessions, logger),
		AdminHandler:    handler.NewAdminHandler(extensions, sessions, usage, interactions, logger),
		AdminKey:        cfg.AdminKey,
		CORSOrigins:     cfg.CORSOrigins,
		SessionTTL:      cfg.SessionTTL,
		SecureCookies:   cfg.SecureCookies,
		APIRateLimitRPM: cfg.APIRateLimitRPM,
		ReadyCheck: func(r *http.Request) error {
			return redisClient.Ping(r.Context()).Err()
		},
		EnableOTelHTTP: cfg.OTELTracingEnabled,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		Redis:         redisClient,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	for _, w := range a.Config.Warnings() {
		a.Logger.Warn(w)
	}
	a.Logger.Info("server starting", "addr", a.Server.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if obsErr := a.Observability.Shutdown(shutdownCtx); obsErr != nil {
		a.Logger.Warn("observability shutdown", "error", obsErr)
	}
	if redisErr := a.Redis.Close(); redisErr != nil {
		a.Logger.Warn("redis close", "error", redisErr)
	}
	return err
}
