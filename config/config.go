package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"greenchain-insights/analytics"
	"greenchain-insights/ml"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	Models   ModelsConfig
	Anomaly  AnomalyConfig
	Insights InsightsConfig
	Stream   StreamConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type SQLiteConfig struct {
	Path string
}

type ModelsConfig struct {
	Dir                string
	BootstrapSamples   int
	Seed               int64
	ValidationSplit    float64
	MinTrainingSamples int
	RidgeLambda        float64
}

type AnomalyConfig struct {
	Contamination float64
	Trees         int
	Seed          int64
}

type InsightsConfig struct {
	TrendThreshold float64
	GoalPriority   float64
}

type StreamConfig struct {
	WindowSize int
	Workers    int
	QueueSize  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads config.yaml from path (or ./ and ./config when path is empty),
// then GREENCHAIN_* environment variables, including any from a local .env file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("GREENCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("sqlite.path", "./data/greenchain.db")

	defaults := ml.DefaultOptions()
	v.SetDefault("models.dir", "models")
	v.SetDefault("models.bootstrapSamples", defaults.BootstrapSamples)
	v.SetDefault("models.seed", defaults.Seed)
	v.SetDefault("models.validationSplit", defaults.ValidationSplit)
	v.SetDefault("models.minTrainingSamples", defaults.MinSamples)
	v.SetDefault("models.ridgeLambda", defaults.RidgeLambda)

	det := analytics.DefaultDetectorConfig()
	v.SetDefault("anomaly.contamination", det.Contamination)
	v.SetDefault("anomaly.trees", det.Trees)
	v.SetDefault("anomaly.seed", det.Seed)

	ins := analytics.DefaultInsightsConfig()
	v.SetDefault("insights.trendThreshold", ins.TrendThreshold)
	v.SetDefault("insights.goalPriority", ins.GoalPriority)

	v.SetDefault("stream.windowSize", 50)
	v.SetDefault("stream.workers", 8)
	v.SetDefault("stream.queueSize", 10000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.maxSizeMB", 100)
	v.SetDefault("logging.maxBackups", 5)
	v.SetDefault("logging.maxAgeDays", 14)
	v.SetDefault("logging.compress", true)
}

func (c *Config) Validate() error {
	if c.Models.BootstrapSamples < 100 {
		return fmt.Errorf("models.bootstrapSamples must be at least 100, got %d", c.Models.BootstrapSamples)
	}
	if c.Models.ValidationSplit <= 0 || c.Models.ValidationSplit >= 1 {
		return fmt.Errorf("models.validationSplit must be in (0, 1), got %v", c.Models.ValidationSplit)
	}
	if c.Models.MinTrainingSamples < 2 {
		return fmt.Errorf("models.minTrainingSamples must be at least 2, got %d", c.Models.MinTrainingSamples)
	}
	if c.Models.RidgeLambda < 0 {
		return fmt.Errorf("models.ridgeLambda must be non-negative, got %v", c.Models.RidgeLambda)
	}
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination >= 0.5 {
		return fmt.Errorf("anomaly.contamination must be in (0, 0.5), got %v", c.Anomaly.Contamination)
	}
	if c.Insights.TrendThreshold < 0 {
		return fmt.Errorf("insights.trendThreshold must be non-negative, got %v", c.Insights.TrendThreshold)
	}
	return nil
}

func (c *Config) ModelOptions() ml.Options {
	return ml.Options{
		ValidationSplit:  c.Models.ValidationSplit,
		MinSamples:       c.Models.MinTrainingSamples,
		BootstrapSamples: c.Models.BootstrapSamples,
		Seed:             c.Models.Seed,
		RidgeLambda:      c.Models.RidgeLambda,
	}
}

func (c *Config) DetectorConfig() analytics.DetectorConfig {
	return analytics.DetectorConfig{
		Contamination: c.Anomaly.Contamination,
		Trees:         c.Anomaly.Trees,
		Seed:          c.Anomaly.Seed,
	}
}

func (c *Config) InsightsConfig() analytics.InsightsConfig {
	return analytics.InsightsConfig{
		TrendThreshold: c.Insights.TrendThreshold,
		GoalPriority:   c.Insights.GoalPriority,
	}
}

func (c *Config) EngineConfig() analytics.EngineConfig {
	return analytics.EngineConfig{
		WindowSize: c.Stream.WindowSize,
		Workers:    c.Stream.Workers,
		QueueSize:  c.Stream.QueueSize,
	}
}
