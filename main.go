package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"greenchain-insights/analytics"
	"greenchain-insights/cache"
	"greenchain-insights/config"
	"greenchain-insights/handlers"
	"greenchain-insights/logger"
	"greenchain-insights/ml"
	"greenchain-insights/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	redisClient, err := cache.NewRedisClient(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer redisClient.Close()

	db, err := sqlite.NewClient(cfg.SQLite.Path, log)
	if err != nil {
		log.Fatal("Failed to open SQLite", zap.String("path", cfg.SQLite.Path), zap.Error(err))
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	opts := cfg.ModelOptions()
	energy, emissions, forecaster := loadPredictors(cfg.Models.Dir, opts, log)

	recommender := ml.NewRecommender(opts, log)
	if err := recommender.Load(cfg.Models.Dir); err != nil {
		log.Warn("using default recommender weights", zap.Error(err))
	}

	pipeline := analytics.NewPipeline(
		analytics.NewAnomalyDetector(cfg.DetectorConfig(), log),
		analytics.NewInsightsService(cfg.InsightsConfig(), log),
		forecaster,
		log,
	)
	pipeline.OnAnomaly = handlers.RecordAnomaly
	pipeline.OnAlert = handlers.RecordAlert

	engine := analytics.NewAnalyticsEngine(pipeline, redisClient, cfg.EngineConfig(), log)
	defer engine.Close()

	r := handlers.NewRouter(handlers.Handlers{
		Metrics:  handlers.NewMetricHandler(engine, log),
		Insights: handlers.NewInsightsHandler(pipeline, log),
		Models:   handlers.NewModelHandler(energy, emissions, recommender, log),
		Feedback: handlers.NewFeedbackHandler(db, log),
	})

	srv := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// loadPredictors restores the latest artifacts. Missing ones leave the
// predictors untrained and the pipeline without forecasts.
func loadPredictors(dir string, opts ml.Options, log *zap.Logger) (*ml.SustainabilityPredictor, *ml.SustainabilityPredictor, analytics.Forecaster) {
	forecaster, err := ml.LoadForecaster(dir, opts, log)
	if err == nil {
		return forecaster.Energy, forecaster.Emissions, forecaster
	}
	log.Warn("predictors not loaded, forecasts disabled", zap.String("dir", dir), zap.Error(err))

	energy := ml.NewSustainabilityPredictor(ml.TargetEnergy, opts, log)
	if err := energy.Load(dir); err != nil {
		log.Warn("energy predictor untrained", zap.Error(err))
	}
	emissions := ml.NewSustainabilityPredictor(ml.TargetEmissions, opts, log)
	if err := emissions.Load(dir); err != nil {
		log.Warn("emissions predictor untrained", zap.Error(err))
	}
	return energy, emissions, nil
}
