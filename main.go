package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cricket-sim/api"
	"cricket-sim/config"
	"cricket-sim/generative"
	"cricket-sim/logger"
	"cricket-sim/scoring"
	"cricket-sim/service"
	"cricket-sim/simulation"
	"cricket-sim/store"
	"cricket-sim/weather"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds everything that must be closed on shutdown
type app struct {
	server *api.Server
	db     *pgxpool.Pool
	redis  *redis.Client
	cancel context.CancelFunc
	log    *logrus.Entry
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	dbConfig.MaxConns = int32(cfg.Workers * 2)
	dbConfig.MinConns = int32(cfg.Workers / 2)
	dbConfig.MaxConnLifetime = time.Hour
	dbConfig.MaxConnIdleTime = time.Minute * 30

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func newApp(cfg *config.Config, log *logrus.Entry) (*app, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &app{cancel: cancel, log: log}

	startup, startupCancel := context.WithTimeout(ctx, 15*time.Second)
	defer startupCancel()

	var ratings scoring.RatingRepository
	var projections service.ProjectionRecorder
	var serverOpts []api.Option
	if cfg.DatabaseURL != "" {
		db, err := connectDB(startup, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = db
		ratingStore := store.NewRatingStore(db, logger.WithComponent("ratings"))
		if err := ratingStore.Migrate(startup); err != nil {
			a.close()
			return nil, err
		}
		ratings = ratingStore
		projections = ratingStore
		serverOpts = append(serverOpts, api.WithDatabase(db))
	} else {
		log.Info("No DATABASE_URL configured, ratings will not be persisted")
	}

	var matches store.MatchStore
	if cfg.RedisURL != "" {
		client, err := connectRedis(startup, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
		matches = store.NewRedisMatchStore(client, "cricket", cfg.MatchTTL, logger.WithComponent("match_store"))
	} else {
		log.Info("No REDIS_URL configured, matches are kept in memory")
		matches = store.NewMemoryMatchStore()
	}

	weatherService := weather.NewService(cfg.OpenWeatherAPIKey, logger.WithComponent("weather"),
		weather.WithDefaultRainProbability(cfg.DefaultRainProbability))
	weatherService.StartCacheCleanup(ctx)
	if cfg.OpenWeatherAPIKey != "" {
		if err := weatherService.ValidateAPIKey(startup); err != nil {
			log.WithError(err).Warn("Weather API key validation failed, matches will use the default rain probability")
		} else {
			log.Info("Weather service initialized successfully")
		}
	}
	serverOpts = append(serverOpts, api.WithWeather(weatherService))

	mods, err := simulation.LoadModifiers(cfg.PlayerModifiers)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := scoring.DefaultOptions()
	opts.RainTargetJitter = cfg.RainTargetJitter
	engine := scoring.NewEngine(ratings, logger.WithComponent("engine"), opts)
	analyzer := simulation.NewAnalyzer(mods, cfg.PhaseScaling)

	dispatcherConfig := simulation.DispatcherConfig{
		Analyzer:            analyzer,
		Cache:               simulation.NewCache(cfg.CacheCapacity),
		GenerativeThreshold: cfg.GenerativeThreshold,
	}
	if cfg.GenerativeEnabled() {
		genConfig := generative.DefaultConfig()
		genConfig.BaseURL = cfg.GenerativeAPIURL
		genConfig.APIKey = cfg.GenerativeAPIKey
		genConfig.Model = cfg.GenerativeModel
		genConfig.RateLimit = cfg.GenerativeRateLimit
		genConfig.Timeout = cfg.GenerativeTimeout
		dispatcherConfig.Generator = generative.NewClient(genConfig, logger.WithComponent("generative"))
	} else {
		log.Info("No generation service configured, complex overs use the statistical model")
	}
	dispatcher := simulation.NewDefaultDispatcher(dispatcherConfig, logger.WithComponent("dispatcher"))

	projector := simulation.NewProjector(analyzer, simulation.ProjectorConfig{
		Workers:          cfg.Workers,
		Runs:             cfg.SimulationRuns,
		RainTargetJitter: cfg.RainTargetJitter,
	}, logger.WithComponent("projector"))

	svc := service.NewMatchService(service.Deps{
		Engine:      engine,
		Analyzer:    analyzer,
		Dispatcher:  dispatcher,
		Projector:   projector,
		Store:       matches,
		Weather:     weatherService,
		Projections: projections,
	}, service.Config{BallDelay: cfg.BallDelay}, log)

	a.server = api.NewServer(svc, api.Config{
		Port:              cfg.Port,
		CORSOrigins:       cfg.CorsOrigins,
		RequestTimeout:    cfg.RequestTimeout,
		SimulationTimeout: cfg.SimulationTimeout,
		LiveFullUpdates:   cfg.LiveFullUpdates,
	}, log, serverOpts...)

	log.WithFields(logrus.Fields{
		"workers":    cfg.Workers,
		"runs":       cfg.SimulationRuns,
		"strategies": svc.Strategies(),
	}).Info("Simulator ready")
	return a, nil
}

func (a *app) close() {
	a.cancel()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) shutdown(ctx context.Context) error {
	defer a.close()
	return a.server.Shutdown(ctx)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment())
	log := logger.WithComponent("main")

	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.shutdown(ctx); err != nil {
			log.WithError(err).Fatal("Server shutdown failed")
		}
		log.Info("Server shutdown complete")
	}()

	if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server failed to start")
	}
	<-done
}
