package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-pattern-engine/internal/backtest"
	"stock-pattern-engine/internal/patterns"
	"stock-pattern-engine/internal/series"
)

// Repository provides data access for bar history, pattern definitions and
// validation reports. It implements backtest.BarSource.
type Repository struct {
	db *DB

	// Skip instruments whose name carries a special-treatment flag
	ExcludeFlaggedNames bool
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, ExcludeFlaggedNames: true}
}

// TrailingBars returns up to limit bars for one instrument ending at the
// as-of date, ascending by date.
func (r *Repository) TrailingBars(ctx context.Context, code string, asOf time.Time, limit int) ([]series.Bar, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE code = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT $3`,
		code, asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trailing bars for %s: %w", code, err)
	}
	defer rows.Close()

	var bars []series.Bar
	for rows.Next() {
		var b series.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scanning bar for %s: %w", code, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the LIMIT query; flip to ascending
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// FutureReturn computes the realized return from the as-of close to the
// Nth later trading day present in storage. Weekends and holidays are
// skipped automatically because only actual trading days have rows. The
// boolean is false when fewer than horizonDays future rows exist; that is
// distinct from a legitimate 0.0 return.
func (r *Repository) FutureReturn(ctx context.Context, code string, asOf time.Time, horizonDays int) (float64, bool, error) {
	var baseClose float64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT close FROM daily_bars
		WHERE code = $1 AND date = $2`,
		code, asOf,
	).Scan(&baseClose)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying base close for %s: %w", code, err)
	}
	if baseClose <= 0 {
		return 0, false, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT close FROM daily_bars
		WHERE code = $1 AND date > $2
		ORDER BY date ASC
		LIMIT $3`,
		code, asOf, horizonDays,
	)
	if err != nil {
		return 0, false, fmt.Errorf("querying future closes for %s: %w", code, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return 0, false, err
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}

	if len(closes) < horizonDays {
		return 0, false, nil
	}
	futureClose := closes[horizonDays-1]
	return (futureClose - baseClose) / baseClose, true, nil
}

// RisingSamples draws candidate (code, date) pairs whose realized forward
// return met the rise threshold. Candidates are intraday gainers from the
// last 180 days, excluding the newest dates that cannot have a forward
// return yet.
func (r *Repository) RisingSamples(ctx context.Context, count int, riseThreshold float64) ([]backtest.SamplePoint, error) {
	query := `
		SELECT code, date
		FROM daily_bars
		WHERE date >= (SELECT MAX(date) FROM daily_bars) - 180
			AND date <= (
				SELECT date FROM (
					SELECT DISTINCT date FROM daily_bars ORDER BY date DESC LIMIT 1 OFFSET 3
				) d
			)
			AND open > 0 AND (close - open) / open > 0.01`
	if r.ExcludeFlaggedNames {
		query += `
			AND (name IS NULL OR name NOT LIKE '%ST%')`
	}
	query += `
		ORDER BY RANDOM()
		LIMIT $1`

	// Overdraw: only a fraction of intraday gainers clear the threshold
	rows, err := r.db.Pool.Query(ctx, query, count*5)
	if err != nil {
		return nil, fmt.Errorf("querying rising candidates: %w", err)
	}
	defer rows.Close()

	var candidates []backtest.SamplePoint
	for rows.Next() {
		var p backtest.SamplePoint
		if err := rows.Scan(&p.Code, &p.Date); err != nil {
			return nil, err
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var samples []backtest.SamplePoint
	for _, cand := range candidates {
		if len(samples) >= count {
			break
		}
		ret, ok, err := r.FutureReturn(ctx, cand.Code, cand.Date, 3)
		if err != nil {
			return nil, err
		}
		if ok && ret >= riseThreshold {
			samples = append(samples, cand)
		}
	}
	return samples, nil
}

// WindowSamples draws uniform (code, date) pairs from the window starting
// daysBack before the latest stored date and spanning spanDays forward.
func (r *Repository) WindowSamples(ctx context.Context, daysBack, spanDays, count int) ([]backtest.SamplePoint, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT code, date
		FROM daily_bars
		WHERE date BETWEEN (SELECT MAX(date) FROM daily_bars) - $1
			AND (SELECT MAX(date) FROM daily_bars) - $2
		ORDER BY RANDOM()
		LIMIT $3`,
		daysBack, daysBack-spanDays, count,
	)
	if err != nil {
		return nil, fmt.Errorf("querying window samples: %w", err)
	}
	defer rows.Close()

	var points []backtest.SamplePoint
	for rows.Next() {
		var p backtest.SamplePoint
		if err := rows.Scan(&p.Code, &p.Date); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ActiveCodes lists instrument codes with recent bars, for screening.
func (r *Repository) ActiveCodes(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT code FROM daily_bars
		WHERE date >= (SELECT MAX(date) FROM daily_bars) - 30`
	if r.ExcludeFlaggedNames {
		query += `
			AND (name IS NULL OR name NOT LIKE '%ST%')`
	}
	query += `
		ORDER BY code
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying active codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// RecentBarsByCode loads trailing history for many instruments at once,
// keyed by code, for the pre-screener.
func (r *Repository) RecentBarsByCode(ctx context.Context, codes []string, historyDays int) (map[string][]series.Bar, error) {
	barsByCode := make(map[string][]series.Bar, len(codes))
	now := time.Now()
	for _, code := range codes {
		bars, err := r.TrailingBars(ctx, code, now, historyDays)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			barsByCode[code] = bars
		}
	}
	return barsByCode, nil
}

// LoadPatterns returns all saved pattern definitions.
func (r *Repository) LoadPatterns(ctx context.Context) ([]patterns.PatternDefinition, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT pattern_id, pattern_name, pattern_type, COALESCE(description, ''), parameters, is_active
		FROM rising_patterns
		ORDER BY pattern_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	var defs []patterns.PatternDefinition
	for rows.Next() {
		var def patterns.PatternDefinition
		var params []byte
		if err := rows.Scan(&def.PatternID, &def.PatternName, &def.PatternType, &def.Description, &params, &def.IsActive); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}
		if err := json.Unmarshal(params, &def.Parameters); err != nil {
			// A corrupt parameter document loses one definition, not the set
			continue
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// UpsertPatterns writes definitions, replacing any with the same id.
func (r *Repository) UpsertPatterns(ctx context.Context, defs []patterns.PatternDefinition) error {
	for _, def := range defs {
		params, err := json.Marshal(def.Parameters)
		if err != nil {
			return fmt.Errorf("encoding parameters for %s: %w", def.PatternID, err)
		}
		_, err = r.db.Pool.Exec(ctx, `
			INSERT INTO rising_patterns (pattern_id, pattern_name, pattern_type, description, parameters, is_active, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
			ON CONFLICT (pattern_id) DO UPDATE SET
				pattern_name = EXCLUDED.pattern_name,
				pattern_type = EXCLUDED.pattern_type,
				description = EXCLUDED.description,
				parameters = EXCLUDED.parameters,
				is_active = EXCLUDED.is_active,
				updated_at = CURRENT_TIMESTAMP`,
			def.PatternID, def.PatternName, def.PatternType, def.Description, params, def.IsActive,
		)
		if err != nil {
			return fmt.Errorf("upserting pattern %s: %w", def.PatternID, err)
		}
	}
	return nil
}

// SaveValidationReport stores a completed run and echoes each pattern's
// headline result onto its definition row.
func (r *Repository) SaveValidationReport(ctx context.Context, report *backtest.Report) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding validation report: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO pattern_validations (report, total_snapshots)
		VALUES ($1, $2)`,
		encoded, report.Metadata.TotalSnapshots,
	)
	if err != nil {
		return fmt.Errorf("inserting validation report: %w", err)
	}

	for _, sum := range report.Summaries {
		_, err = r.db.Pool.Exec(ctx, `
			UPDATE rising_patterns
			SET success_rate = $1, is_valid = $2, updated_at = CURRENT_TIMESTAMP
			WHERE pattern_name = $3`,
			sum.SuccessRate, sum.IsValid, sum.PatternName,
		)
		if err != nil {
			return fmt.Errorf("updating pattern %s: %w", sum.PatternName, err)
		}
	}
	return nil
}

// LatestValidationReport returns the most recent stored run, or nil when
// no run has completed yet.
func (r *Repository) LatestValidationReport(ctx context.Context) (*backtest.Report, error) {
	var encoded []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT report FROM pattern_validations
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
	).Scan(&encoded)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest validation report: %w", err)
	}

	var report backtest.Report
	if err := json.Unmarshal(encoded, &report); err != nil {
		return nil, fmt.Errorf("decoding validation report: %w", err)
	}
	return &report, nil
}
