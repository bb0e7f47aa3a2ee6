// Package main - точка входа API-сервера Green Guardian.
//
// Сервер хранит прогресс пользователей расширения: уровни, серии дней,
// челленджи и достижения. Расширение вызывает API после каждого экологичного
// выбора и получает в ответ начисленный опыт и уведомления.
//
// Фоновые задачи:
// - ежедневный сброс челленджей для всех установок
// - очистка просроченных уведомлений
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/app"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/scheduler"
	httpserver "github.com/Dhanush6858/green-gaurdian/internal/interface/http"
	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Green Guardian API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("timezone", cfg.Location.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ИНИЦИАЛИЗАЦИЯ ПРИЛОЖЕНИЯ (хранилище, Redis, шина событий, обработчики)
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to release resources", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПРОВЕРКИ ЗДОРОВЬЯ
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("storage", application.PingStore)
	if application.Redis != nil && cfg.Storage.Driver != config.DriverRedis {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(application.Redis))
	}
	if application.Recommender != nil {
		health.AddOptionalCheck("recommendations", handlers.NewRemoteServiceCheck(application.Recommender))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = setupScheduler(cfg, application, log.Slog())
		if err != nil {
			return fmt.Errorf("failed to configure scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.CORSOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpConfig.Version = cfg.App.Version

	var auth *handlers.Authenticator
	if cfg.Auth.Enabled() {
		auth = handlers.NewAuthenticator(handlers.AuthConfig{
			APIKeyHeader: cfg.Auth.APIKeyHeader,
			APIKeyHashes: cfg.Auth.APIKeyHashes,
			TokenSecret:  cfg.Auth.TokenSecret,
			TokenTTL:     cfg.Auth.TokenTTL,
			TokenIssuer:  cfg.Auth.TokenIssuer,
		})
	} else {
		log.Warn("API authentication is disabled")
	}

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		RecordAction:         application.RecordAction,
		EvaluateAchievements: application.EvaluateAchievements,
		UpdateChallenge:      application.UpdateChallenge,
		Initialize:           application.Initialize,
		ResetProgress:        application.ResetProgress,
		UpdateSettings:       application.UpdateSettings,
		GetProgress:          application.GetProgress,
		GetChallenges:        application.GetChallenges,
		GetAchievements:      application.GetAchievements,
		GetMonthlyProgress:   application.GetMonthlyProgress,
		GetActivity:          application.GetActivity,
		GetSettings:          application.GetSettings,
		GetRecommendations:   application.GetRecommendations,
		Notifications:        application.Notifications,
		Auth:                 auth,
		HealthChecker:        health,
		Clock:                application.Clock,
		Logger:               log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", logger.String("address", httpConfig.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Green Guardian API is running", logger.String("http_address", httpConfig.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Перестаём принимать запросы
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		shutdownErr = err
	}

	// 2. Дожидаемся текущих задач
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", logger.Err(err))
			shutdownErr = err
		}
	}

	// 3. Хранилище и Redis закроются через defer

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.App.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    logger.ParseFormat(cfg.App.LogFormat),
		AddCaller: cfg.IsDevelopment(),
	}).With(logger.String("service", cfg.App.Name))

	slog.SetDefault(log.Slog())
	return log
}

// setupScheduler регистрирует сброс челленджей и очистку уведомлений.
func setupScheduler(cfg *config.Config, a *app.App, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Location:   cfg.Location,
		Clock:      a.Clock,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})

	rollover, err := scheduler.ParseSchedule(cfg.Scheduler.RolloverSchedule)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_ROLLOVER_SCHEDULE: %w", err)
	}
	if err := sched.Register(a.RolloverJob(), rollover); err != nil {
		return nil, err
	}
	if err := sched.Register(a.CleanupJob(), scheduler.NewIntervalSchedule(cfg.Scheduler.CleanupInterval)); err != nil {
		return nil, err
	}
	return sched, nil
}
