package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

const (
	upsertPreferencesSQL = `INSERT INTO preferences (
        user_id,
        currency,
        notifications_enabled,
        alert_threshold_pct,
        last_notified_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (user_id) DO UPDATE
    SET
        currency              = EXCLUDED.currency,
        notifications_enabled = EXCLUDED.notifications_enabled,
        alert_threshold_pct   = EXCLUDED.alert_threshold_pct,
        last_notified_at      = EXCLUDED.last_notified_at,
        updated_at            = EXCLUDED.updated_at;`

	getPreferencesSQL = `SELECT
        user_id,
        currency,
        notifications_enabled,
        alert_threshold_pct,
        last_notified_at,
        updated_at
    FROM preferences
    WHERE user_id = $1;`

	insertPriceSampleSQL = `INSERT INTO price_samples (
        metal,
        currency,
        price_per_gram,
        price_per_ounce,
        change_pct,
        direction,
        source,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listRecentSamplesSQL = `SELECT
        metal,
        currency,
        price_per_gram,
        price_per_ounce,
        change_pct,
        direction,
        source,
        observed_at,
        created_at
    FROM price_samples
    ORDER BY observed_at DESC
    LIMIT $1;`

	listSamplesBetweenSQL = `SELECT
        metal,
        currency,
        price_per_gram,
        price_per_ounce,
        change_pct,
        direction,
        source,
        observed_at,
        created_at
    FROM price_samples
    WHERE metal = $1
      AND currency = $2
      AND observed_at >= $3
      AND observed_at < $4
    ORDER BY observed_at;`

	insertAlertSQL = `INSERT INTO alerts (
        user_id,
        category,
        metal,
        currency,
        change_pct,
        threshold_pct,
        direction,
        message
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        user_id,
        category,
        metal,
        currency,
        change_pct,
        threshold_pct,
        direction,
        message,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`
)

// PreferenceStore defines remote preference persistence with upsert semantics.
type PreferenceStore interface {
	UpsertPreferences(ctx context.Context, rec PreferencesRecord) error
	GetPreferences(ctx context.Context, userID string) (PreferencesRecord, error)
}

// PriceSampleStore defines the price observation audit trail.
type PriceSampleStore interface {
	InsertPriceSample(ctx context.Context, sample PriceSample) error
	ListRecentSamples(ctx context.Context, limit int) ([]PriceSample, error)
	ListSamplesBetween(ctx context.Context, metal, currency string, from, to time.Time) ([]PriceSample, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// Store aggregates access to preferences, price samples, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertPreferences creates or updates a user's preference record.
func (s *Store) UpsertPreferences(ctx context.Context, rec PreferencesRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	notified, err := json.Marshal(rec.LastNotifiedAt)
	if err != nil {
		return fmt.Errorf("encode last_notified_at: %w", err)
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, execErr := pool.Exec(ctx, upsertPreferencesSQL,
		rec.UserID,
		rec.Currency,
		rec.NotificationsEnabled,
		rec.AlertThresholdPercent.String(),
		notified,
		updatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert preferences: %w", execErr)
	}
	return nil
}

// GetPreferences loads a user's preference record.
func (s *Store) GetPreferences(ctx context.Context, userID string) (PreferencesRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PreferencesRecord{}, err
	}

	var (
		rec          PreferencesRecord
		thresholdStr string
		notified     []byte
	)

	row := pool.QueryRow(ctx, getPreferencesSQL, userID)
	if scanErr := row.Scan(
		&rec.UserID,
		&rec.Currency,
		&rec.NotificationsEnabled,
		&thresholdStr,
		&notified,
		&rec.UpdatedAt,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return PreferencesRecord{}, ErrNotFound
		}
		return PreferencesRecord{}, fmt.Errorf("get preferences: %w", scanErr)
	}

	rec.AlertThresholdPercent, err = decimal.NewFromString(thresholdStr)
	if err != nil {
		return PreferencesRecord{}, fmt.Errorf("parse alert threshold: %w", err)
	}

	rec.LastNotifiedAt = make(map[string]time.Time)
	if len(notified) > 0 {
		if err := json.Unmarshal(notified, &rec.LastNotifiedAt); err != nil {
			return PreferencesRecord{}, fmt.Errorf("parse last_notified_at: %w", err)
		}
	}

	return rec, nil
}

// InsertPriceSample appends a live observation to the audit trail.
func (s *Store) InsertPriceSample(ctx context.Context, sample PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var change interface{}
	if sample.ChangePercent != nil {
		change = sample.ChangePercent.String()
	}
	var direction interface{}
	if sample.Direction != nil {
		direction = *sample.Direction
	}

	_, execErr := pool.Exec(ctx, insertPriceSampleSQL,
		sample.Metal,
		sample.Currency,
		sample.PricePerGram.String(),
		sample.PricePerOunce.String(),
		change,
		direction,
		sample.Source,
		sample.ObservedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert price sample: %w", execErr)
	}
	return nil
}

// ListRecentSamples lists the most recent samples ordered by descending observation time.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// ListSamplesBetween lists samples for one key within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, metal, currency string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, metal, currency, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.UserID,
		alert.Category,
		alert.Metal,
		alert.Currency,
		alert.ChangePercent.String(),
		alert.ThresholdPercent.String(),
		alert.Direction,
		alert.Message,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec          AlertRecord
			changeStr    string
			thresholdStr string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Category,
			&rec.Metal,
			&rec.Currency,
			&changeStr,
			&thresholdStr,
			&rec.Direction,
			&rec.Message,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.ChangePercent, convErr = decimal.NewFromString(changeStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse change pct: %w", convErr)
		}
		rec.ThresholdPercent, convErr = decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse threshold pct: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]PriceSample, error) {
	samples := make([]PriceSample, 0, sizeHint)
	for rows.Next() {
		sample, scanErr := scanPriceSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanPriceSample(rows pgx.Rows) (PriceSample, error) {
	var (
		sample       PriceSample
		perGramStr   string
		perOunceStr  string
		changeStr    sql.NullString
		directionStr sql.NullString
	)

	if err := rows.Scan(
		&sample.Metal,
		&sample.Currency,
		&perGramStr,
		&perOunceStr,
		&changeStr,
		&directionStr,
		&sample.Source,
		&sample.ObservedAt,
		&sample.CreatedAt,
	); err != nil {
		return PriceSample{}, err
	}

	var err error
	sample.PricePerGram, err = decimal.NewFromString(perGramStr)
	if err != nil {
		return PriceSample{}, fmt.Errorf("parse price per gram: %w", err)
	}
	sample.PricePerOunce, err = decimal.NewFromString(perOunceStr)
	if err != nil {
		return PriceSample{}, fmt.Errorf("parse price per ounce: %w", err)
	}

	if changeStr.Valid {
		change, convErr := decimal.NewFromString(changeStr.String)
		if convErr != nil {
			return PriceSample{}, fmt.Errorf("parse change pct: %w", convErr)
		}
		sample.ChangePercent = &change
	}
	if directionStr.Valid {
		direction := directionStr.String
		sample.Direction = &direction
	}

	return sample, nil
}
