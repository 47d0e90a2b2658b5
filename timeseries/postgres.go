package timeseries

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/domain"
)

// PostgresRepository implements Repository against a sensor_readings table
// with a unique (sensor_id, ts) constraint.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a pooled connection and verifies
// reachability before returning.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	if connString == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 50
	cfg.MinConns = 5
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresRepository) Close() {
	p.pool.Close()
}

func (p *PostgresRepository) Insert(ctx context.Context, reading domain.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (sensor_id, ts, value, unit, sensor_type, quality)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := p.pool.Exec(ctx, query,
		reading.SensorID, reading.Timestamp, reading.Value, reading.Unit,
		string(reading.SensorType), reading.Quality,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return apperr.ErrDuplicateKey
			}
			// Any other constraint violation (check, not-null, foreign key)
			// is Permanent per spec.md §4.3 — wrap it as KindPermanent so it
			// is never mistaken for a retryable condition.
			return apperr.Wrap(apperr.KindPermanent, "constraint_violation", "sensor reading violates a table constraint", err)
		}
		return apperr.Wrap(apperr.KindTransient, "repository_unavailable", "time-series repository insert failed", err)
	}
	return nil
}

func (p *PostgresRepository) Range(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]domain.SensorReading, error) {
	query := `
		SELECT sensor_id, ts, value, unit, sensor_type, quality
		FROM sensor_readings
		WHERE sensor_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`
	args := []interface{}{sensorID, from, to}
	if limit > 0 {
		query += `
		LIMIT $4
	`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func (p *PostgresRepository) Recent(ctx context.Context, sensorID string, n int) ([]domain.SensorReading, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `
		SELECT sensor_id, ts, value, unit, sensor_type, quality
		FROM sensor_readings
		WHERE sensor_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, sensorID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanReadings(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanReadings(rows pgx.Rows) ([]domain.SensorReading, error) {
	var out []domain.SensorReading
	for rows.Next() {
		var (
			r          domain.SensorReading
			sensorType string
		)
		if err := rows.Scan(&r.SensorID, &r.Timestamp, &r.Value, &r.Unit, &sensorType, &r.Quality); err != nil {
			return nil, err
		}
		r.SensorType = domain.SensorType(sensorType)
		out = append(out, r)
	}
	return out, rows.Err()
}
