package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"greenchain-insights/models"
)

// Client stores historical samples with their known targets, and operator
// feedback on flagged anomalies.
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

func NewClient(dbPath string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	log.Info("SQLite client initialized", zap.String("path", dbPath))
	return &Client{db: db, log: log}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS metric_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		transaction_count REAL NOT NULL,
		block_time REAL NOT NULL,
		active_validators REAL NOT NULL,
		network_usage REAL NOT NULL,
		consensus_mechanism TEXT NOT NULL,
		energy_usage_kwh REAL NOT NULL,
		emissions_kg_co2 REAL NOT NULL,
		UNIQUE (source_id, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON metric_samples(timestamp);

	CREATE TABLE IF NOT EXISTS anomaly_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		anomaly_id TEXT NOT NULL,
		is_valid INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_anomaly ON anomaly_feedback(anomaly_id);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertSamples upserts samples keyed by (source_id, timestamp).
func (c *Client) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_samples (source_id, timestamp, transaction_count, block_time, active_validators,
			network_usage, consensus_mechanism, energy_usage_kwh, emissions_kg_co2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, timestamp) DO UPDATE SET
			transaction_count = excluded.transaction_count,
			block_time = excluded.block_time,
			active_validators = excluded.active_validators,
			network_usage = excluded.network_usage,
			consensus_mechanism = excluded.consensus_mechanism,
			energy_usage_kwh = excluded.energy_usage_kwh,
			emissions_kg_co2 = excluded.emissions_kg_co2`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s.SourceID, s.Timestamp.UTC().UnixNano(), s.TransactionCount, s.BlockTime,
			s.ActiveValidators, s.NetworkUsage, string(s.ConsensusMechanism), s.EnergyUsageKWh, s.EmissionsKgCO2); err != nil {
			return fmt.Errorf("failed to insert sample %s@%s: %w", s.SourceID, s.Timestamp, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	c.log.Debug("samples stored", zap.Int("count", len(samples)))
	return nil
}

// TrainingSamples returns every stored sample with its targets, newest first.
func (c *Client) TrainingSamples(ctx context.Context) ([]models.MetricSample, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT source_id, timestamp, transaction_count, block_time, active_validators,
			network_usage, consensus_mechanism, energy_usage_kwh, emissions_kg_co2
		FROM metric_samples
		ORDER BY timestamp DESC, source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []models.MetricSample
	for rows.Next() {
		var (
			s         models.MetricSample
			ts        int64
			consensus string
		)
		if err := rows.Scan(&s.SourceID, &ts, &s.TransactionCount, &s.BlockTime, &s.ActiveValidators,
			&s.NetworkUsage, &consensus, &s.EnergyUsageKWh, &s.EmissionsKgCO2); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Timestamp = time.Unix(0, ts).UTC()
		s.ConsensusMechanism = models.ConsensusMechanism(consensus)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate samples: %w", err)
	}
	return out, nil
}

func (c *Client) SaveFeedback(ctx context.Context, fb models.AnomalyFeedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	valid := 0
	if *fb.IsValid {
		valid = 1
	}
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO anomaly_feedback (anomaly_id, is_valid, created_at) VALUES (?, ?, ?)`,
		fb.AnomalyID, valid, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	c.log.Info("anomaly feedback recorded", zap.String("anomaly_id", fb.AnomalyID), zap.Bool("is_valid", *fb.IsValid))
	return nil
}

// FeedbackCounts returns how many verdicts confirmed and rejected an anomaly.
func (c *Client) FeedbackCounts(ctx context.Context, anomalyID string) (valid, invalid int, err error) {
	err = c.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(is_valid), 0), COALESCE(SUM(1 - is_valid), 0)
		FROM anomaly_feedback WHERE anomaly_id = ?`, anomalyID).Scan(&valid, &invalid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return valid, invalid, nil
}
