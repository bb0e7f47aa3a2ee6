// Package app assembles the Green Guardian object graph from configuration:
// the progress store, the tracker, the session runner, the event bus and
// every command and query handler. Both the API server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Dhanush6858/green-gaurdian/config"
	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/eventhandler"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/external/sustainability"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/messaging"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/memory"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/postgres"
	redisstore "github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/redis"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/sqlite"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/scheduler/jobs"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/service"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// Store is a progress store with settings.
type Store interface {
	progress.Repository
	progress.SettingsRepository
}

// EventBus is the bus events flow through after every saved operation.
type EventBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

type options struct {
	clock        timeutil.Clock
	store        Store
	provider     recommendation.Provider
	noEventHooks bool
}

// Option customizes New.
type Option func(*options)

// WithClock replaces the system clock.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithStore bypasses Storage.Driver and uses s.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithProvider replaces the remote recommendation client.
func WithProvider(p recommendation.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithoutNotifications skips registering the notification event handler.
// One-shot CLI commands use it since nobody reads their toasts.
func WithoutNotifications() Option {
	return func(o *options) { o.noEventHooks = true }
}

// ══════════════════════════════════════════════════════════════════════════════
// APP
// ══════════════════════════════════════════════════════════════════════════════

// App holds the wired components. Fields that depend on optional
// infrastructure (Redis, the remote service) may be nil.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	Clock  timeutil.Clock

	Store         Store
	Tracker       *progress.Tracker
	Runner        *session.Runner
	Bus           EventBus
	Notifications *service.NotificationCenter

	Redis       *redisstore.Cache
	Recommender *sustainability.Client

	// Commands
	RecordAction         *command.RecordActionHandler
	EvaluateAchievements *command.EvaluateAchievementsHandler
	UpdateChallenge      *command.UpdateChallengeHandler
	Initialize           *command.InitializeHandler
	ResetProgress        *command.ResetProgressHandler
	UpdateSettings       *command.UpdateSettingsHandler

	// Queries
	GetProgress        *query.GetProgressHandler
	GetChallenges      *query.GetChallengesHandler
	GetAchievements    *query.GetAchievementsHandler
	GetMonthlyProgress *query.GetMonthlyProgressHandler
	GetActivity        *query.GetActivityHandler
	GetSettings        *query.GetSettingsHandler
	GetRecommendations *query.GetRecommendationsHandler

	closers   []func() error
	storePing func(ctx context.Context) error
}

// New builds the application. The caller must call Close.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Features == nil {
		cfg.Features = config.LoadFeatureFlags(map[string]string{})
	}

	o := options{clock: timeutil.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config: cfg,
		Log:    log,
		Clock:  o.clock,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional unless it is the store)
	// ─────────────────────────────────────────────────────────────────────────
	if needsRedis(cfg) {
		if err := a.connectRedis(ctx); err != nil {
			if cfg.Storage.Driver == config.DriverRedis {
				return nil, err
			}
			log.Warn("redis unavailable, continuing without cache and pub/sub", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Store
	// ─────────────────────────────────────────────────────────────────────────
	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Tracker and runner
	// ─────────────────────────────────────────────────────────────────────────
	trackerCfg := progress.DefaultConfig()
	trackerCfg.Location = cfg.Location
	if !cfg.Features.IsEnabled(config.FeatureSpecialChallenges, nil) {
		trackerCfg.Challenges = lo.Filter(trackerCfg.Challenges, func(d progress.ChallengeDefinition, _ int) bool {
			return d.Scope != progress.ScopeSpecial
		})
	}
	if a.Tracker, err = progress.NewTracker(trackerCfg); err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}

	if a.Bus, err = a.newEventBus(); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Bus.Close)

	a.Runner = session.NewRunner(a.Store, a.Tracker, a.Clock, a.Bus, log, session.Config{
		SaveAttempts: cfg.Tracker.SaveRetries,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Notifications
	// ─────────────────────────────────────────────────────────────────────────
	var channels []notification.Channel
	if a.Redis != nil && (cfg.Redis.PublishNotifications || cfg.Features.IsEnabled(config.FeatureExperimentalPubSub, nil)) {
		channels = append(channels, redisstore.NewNotificationChannel(a.Redis, cfg.Redis.NotificationChannel))
	}
	a.Notifications = service.NewNotificationCenter(a.Clock, log.Slog(), service.NotificationCenterConfig{
		MaxActive: cfg.Notifications.MaxActive,
	}, channels...)

	if !o.noEventHooks {
		h := eventhandler.NewOnProgressEventHandler(a.Notifications, a.Store, cfg.Features, log.Slog(),
			eventhandler.DefaultProgressEventConfig())
		if err := h.Register(a.Bus); err != nil {
			return nil, fmt.Errorf("register notification handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Recommendations
	// ─────────────────────────────────────────────────────────────────────────
	provider := o.provider
	if provider == nil && cfg.Recommendation.Enabled {
		a.Recommender = sustainability.NewClient(sustainability.ClientConfig{
			BaseURL:           cfg.Recommendation.BaseURL,
			Timeout:           cfg.Recommendation.Timeout,
			MaxRetries:        cfg.Recommendation.MaxRetries,
			BreakerThreshold:  cfg.Recommendation.BreakerThreshold,
			BreakerTimeout:    cfg.Recommendation.BreakerTimeout,
			RateLimiterConfig: sustainability.DefaultRateLimiterConfig(),
			Clock:             a.Clock,
			Logger:            log.Slog(),
			Debug:             cfg.App.Debug,
		})
		provider = a.Recommender
	}
	var cache recommendation.Cache
	if a.Redis != nil {
		cache = redisstore.NewRecommendationCache(a.Redis, cfg.Recommendation.CacheTTL)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	a.RecordAction = command.NewRecordActionHandler(a.Runner, log)
	a.EvaluateAchievements = command.NewEvaluateAchievementsHandler(a.Runner)
	a.UpdateChallenge = command.NewUpdateChallengeHandler(a.Runner)
	a.Initialize = command.NewInitializeHandler(a.Runner)
	a.ResetProgress = command.NewResetProgressHandler(a.Runner, log)
	a.UpdateSettings = command.NewUpdateSettingsHandler(a.Store)

	a.GetProgress = query.NewGetProgressHandler(a.Runner)
	a.GetChallenges = query.NewGetChallengesHandler(a.Runner)
	a.GetAchievements = query.NewGetAchievementsHandler(a.Runner)
	a.GetMonthlyProgress = query.NewGetMonthlyProgressHandler(a.Runner)
	a.GetActivity = query.NewGetActivityHandler(a.Runner)
	a.GetSettings = query.NewGetSettingsHandler(a.Store)
	a.GetRecommendations = query.NewGetRecommendationsHandler(provider, cache, cfg.Features, log)

	log.Info("application wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.Bool("redis", a.Redis != nil),
		logger.Bool("remote_recommendations", provider != nil),
		logger.Int("challenges", len(trackerCfg.Challenges)),
	)
	return a, nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Storage.Driver == config.DriverRedis ||
		cfg.Redis.URL != "" ||
		cfg.Redis.PublishNotifications
}

func (a *App) connectRedis(ctx context.Context) error {
	rc := a.Config.Redis
	cache, err := redisstore.NewCache(ctx, redisstore.Config{
		URL:          rc.URL,
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		KeyPrefix:    rc.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.Redis = cache
	a.closers = append(a.closers, cache.Close)
	return nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.storePing = st.Ping
		return st, nil

	case config.DriverPostgres:
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			URL:               cfg.Database.URL,
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
			HealthCheckPeriod: time.Minute,
			QueryTimeout:      cfg.Database.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })
		a.storePing = conn.Ping

		if cfg.Database.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Up(ctx)
			if err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			if len(applied) > 0 {
				a.Log.Info("postgres migrations applied", logger.Any("versions", applied))
			}
		}
		return postgres.NewProgressRepository(conn), nil

	case config.DriverRedis:
		if a.Redis == nil {
			return nil, errors.New("redis store requested but redis is not connected")
		}
		a.storePing = a.Redis.Ping
		return redisstore.NewProgressStore(a.Redis), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// newEventBus returns a synchronous bus so that notifications follow event
// order. With a Redis store the bus also fans events out to other instances.
func (a *App) newEventBus() (EventBus, error) {
	slogger := a.Log.Slog()
	mw := []messaging.Middleware{
		messaging.RecoveryMiddleware(slogger),
		messaging.LoggingMiddleware(slogger),
	}

	if a.Redis != nil && a.Config.Storage.Driver == config.DriverRedis {
		bus, err := messaging.NewRedisBus(messaging.RedisConfig{
			Client:      messaging.NewGoRedisClient(a.Redis.Client()),
			Channel:     a.Redis.Key("events"),
			Logger:      slogger,
			Middlewares: mw,
		})
		if err != nil {
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		return bus, nil
	}
	return messaging.NewBus(slogger, mw...), nil
}

// RolloverJob returns a job that persists the daily and weekly rollover of
// every stored installation.
func (a *App) RolloverJob() *jobs.RolloverSweepJob {
	return jobs.NewRolloverSweepJob(a.Store, a.Initialize, a.Clock, a.Log.Slog(), jobs.DefaultRolloverSweepConfig())
}

// CleanupJob returns a job that drops expired notifications.
func (a *App) CleanupJob() *jobs.NotificationCleanupJob {
	return jobs.NewNotificationCleanupJob(a.Notifications, a.Clock, a.Log.Slog())
}

// PingStore checks the progress store. Stores without a connection always pass.
func (a *App) PingStore(ctx context.Context) error {
	if a.storePing == nil {
		return nil
	}
	return a.storePing(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
