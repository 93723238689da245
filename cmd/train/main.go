// Command train fits the energy and emissions predictors on the samples
// stored in SQLite and writes timestamped artifacts to the models directory.
// With -ratings it also calibrates the recommender weights against observed
// network scores.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"greenchain-insights/config"
	"greenchain-insights/logger"
	"greenchain-insights/ml"
	"greenchain-insights/models"
	"greenchain-insights/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	importPath := flag.String("import", "", "JSON file of samples to store before training")
	ratingsPath := flag.String("ratings", "", "JSON file of rated networks to calibrate recommender weights")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
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
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), cfg, *importPath, *ratingsPath, log); err != nil {
		log.Error("training failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, importPath, ratingsPath string, log *zap.Logger) error {
	db, err := sqlite.NewClient(cfg.SQLite.Path, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	if importPath != "" {
		samples, err := readSamples(importPath)
		if err != nil {
			return err
		}
		if err := db.InsertSamples(ctx, samples); err != nil {
			return err
		}
		log.Info("samples imported", zap.String("path", importPath), zap.Int("count", len(samples)))
	}

	samples, err := db.TrainingSamples(ctx)
	if err != nil {
		return err
	}
	log.Info("loaded training samples", zap.Int("count", len(samples)))

	if err := os.MkdirAll(cfg.Models.Dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	opts := cfg.ModelOptions()
	trained := 0
	for _, target := range []ml.Target{ml.TargetEnergy, ml.TargetEmissions} {
		path, err := train(target, samples, cfg.Models.Dir, opts, log)
		if errors.Is(err, ml.ErrInsufficientData) {
			log.Warn("skipping model", zap.String("model", string(target)), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		log.Info("model trained", zap.String("model", string(target)), zap.String("artifact", path))
		trained++
	}
	if trained == 0 {
		return fmt.Errorf("no model trained from %d samples: %w", len(samples), ml.ErrInsufficientData)
	}

	if ratingsPath != "" {
		path, err := calibrate(ratingsPath, cfg.Models.Dir, opts, log)
		if err != nil {
			return err
		}
		log.Info("recommender calibrated", zap.String("artifact", path))
	}
	return nil
}

// rating is an observed 0..100 score for a network.
type rating struct {
	Entity models.Entity `json:"entity"`
	Score  float64       `json:"score"`
}

func calibrate(path, dir string, opts ml.Options, log *zap.Logger) (string, error) {
	ratings, err := readRatings(path)
	if err != nil {
		return "", err
	}
	entities := make([]models.Entity, len(ratings))
	scores := make([]float64, len(ratings))
	for i, r := range ratings {
		entities[i] = r.Entity
		scores[i] = r.Score
	}

	rec := ml.NewRecommender(opts, log)
	metrics, err := rec.CalibrateWeights(entities, scores)
	if err != nil {
		return "", fmt.Errorf("calibrate recommender: %w", err)
	}
	log.Info("calibrated weights",
		zap.Any("weights", rec.Weights()),
		zap.Float64("val_r2", metrics.ValR2))
	return rec.Save(dir)
}

func readRatings(path string) ([]rating, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}
	var ratings []rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	for i := range ratings {
		if err := ratings[i].Entity.Validate(); err != nil {
			return nil, fmt.Errorf("rating %d: %w", i, err)
		}
		if ratings[i].Score < 0 || ratings[i].Score > 100 {
			return nil, fmt.Errorf("rating %d: %w", i,
				&models.ValidationError{Field: "score", Reason: "must be between 0 and 100"})
		}
	}
	return ratings, nil
}

func train(target ml.Target, samples []models.MetricSample, dir string, opts ml.Options, log *zap.Logger) (string, error) {
	p := ml.NewSustainabilityPredictor(target, opts, log)
	X, y := p.TrainingSet(samples)
	metrics, err := p.Train(X, y, opts.ValidationSplit)
	if err != nil {
		return "", err
	}
	log.Info("validation metrics",
		zap.String("model", string(target)),
		zap.Float64("train_mse", metrics.TrainMSE),
		zap.Float64("val_mse", metrics.ValMSE),
		zap.Float64("train_r2", metrics.TrainR2),
		zap.Float64("val_r2", metrics.ValR2))
	return p.Save(dir)
}

func readSamples(path string) ([]models.MetricSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	var samples []models.MetricSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if err := models.ValidateWindow(samples); err != nil {
		return nil, err
	}
	return samples, nil
}
