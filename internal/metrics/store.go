package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CallMetric records metadata for a single model call.
type CallMetric struct {
	Provider  string
	Model     string
	Attempts  int
	LatencyMS int64
	Success   bool
	Timestamp time.Time
}

// Store handles persistence of model call metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m CallMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if m.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_metrics (provider, model, attempts, latency_ms, success, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Provider, m.Model, m.Attempts, m.LatencyMS, success, ts)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// RecordCall adapts a planning call into a stored metric. Failures are
// swallowed: observability must never break the planning path.
func (s *Store) RecordCall(ctx context.Context, provider, model string, attempts int, latency time.Duration, success bool) {
	_ = s.Record(ctx, CallMetric{
		Provider:  provider,
		Model:     model,
		Attempts:  attempts,
		LatencyMS: latency.Milliseconds(),
		Success:   success,
	})
}

// DailyUsage represents call totals for a single day.
type DailyUsage struct {
	Date          string  `json:"date"`
	Calls         int     `json:"calls"`
	Failures      int     `json:"failures"`
	TotalAttempts int     `json:"total_attempts"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
}

// GetDailyUsage retrieves per-day call stats for the last N days.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(timestamp) AS day,
			COUNT(*),
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			SUM(attempts),
			AVG(latency_ms)
		FROM llm_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var (
			u       DailyUsage
			day     sql.NullString
			latency sql.NullFloat64
		)
		if err := rows.Scan(&day, &u.Calls, &u.Failures, &u.TotalAttempts, &latency); err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		if day.Valid {
			u.Date = day.String
		} else {
			u.Date = "Unknown"
		}
		if latency.Valid {
			u.AvgLatencyMS = latency.Float64
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup deletes metrics older than the retention window. Returns the
// number of deleted rows.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_metrics WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}
