// Command insights runs the analysis pipeline once over a JSON window and
// prints the JSON response. The window is either a full request document on
// stdin ("-") or up to three positional JSON arguments: samples, preferences
// and learning goals.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"greenchain-insights/analytics"
	"greenchain-insights/logger"
	"greenchain-insights/ml"
	"greenchain-insights/models"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelsDir := fs.String("models", "", "directory of trained predictor artifacts")
	contamination := fs.Float64("contamination", analytics.DefaultDetectorConfig().Contamination, "expected anomaly fraction")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	log := logger.NewWithWriter(level, "console", stderr)
	defer log.Sync()

	fail := func(err error) int {
		log.Error("analysis failed", zap.Error(err))
		json.NewEncoder(stdout).Encode(analytics.ErrorResponse(err, time.Now()))
		return 1
	}
	defer func() {
		if r := recover(); r != nil {
			code = fail(fmt.Errorf("internal error: %v", r))
		}
	}()

	req, err := readRequest(fs.Args(), stdin)
	if err != nil {
		return fail(err)
	}

	detectorCfg := analytics.DefaultDetectorConfig()
	detectorCfg.Contamination = *contamination

	var forecaster analytics.Forecaster
	if *modelsDir != "" {
		f, err := ml.LoadForecaster(*modelsDir, ml.DefaultOptions(), log)
		if err != nil {
			log.Warn("forecasts disabled", zap.String("dir", *modelsDir), zap.Error(err))
		} else {
			forecaster = f
		}
	}

	pipeline := analytics.NewPipeline(
		analytics.NewAnomalyDetector(detectorCfg, log),
		analytics.NewInsightsService(analytics.DefaultInsightsConfig(), log),
		forecaster,
		log,
	)
	resp, err := pipeline.Run(req)
	if err != nil {
		return fail(err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fail(err)
	}
	return 0
}

func readRequest(args []string, stdin io.Reader) (analytics.Request, error) {
	var req analytics.Request
	if len(args) == 0 {
		return req, &models.ValidationError{Field: "samples", Reason: "argument is required"}
	}
	if len(args) > 3 {
		return req, fmt.Errorf("expected at most 3 arguments, got %d", len(args))
	}

	if args[0] == "-" {
		if err := json.NewDecoder(stdin).Decode(&req); err != nil {
			return req, fmt.Errorf("decode request: %w", err)
		}
		return req, nil
	}

	if err := json.Unmarshal([]byte(args[0]), &req.Samples); err != nil {
		return req, fmt.Errorf("decode samples: %w", err)
	}
	if len(args) > 1 && args[1] != "" {
		var prefs models.UserPreferences
		if err := json.Unmarshal([]byte(args[1]), &prefs); err != nil {
			return req, fmt.Errorf("decode preferences: %w", err)
		}
		req.Preferences = &prefs
	}
	if len(args) > 2 && args[2] != "" {
		if err := json.Unmarshal([]byte(args[2]), &req.LearningGoals); err != nil {
			return req, fmt.Errorf("decode learning goals: %w", err)
		}
	}
	return req, nil
}
