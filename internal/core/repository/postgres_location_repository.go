package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"familytrack/internal/core/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresLocationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLocationRepository(pool *pgxpool.Pool) *PostgresLocationRepository {
	return &PostgresLocationRepository{pool: pool}
}

const locationColumns = `id, user_id, latitude, longitude, accuracy, altitude, heading, speed, timestamp`

func (r *PostgresLocationRepository) Create(ctx context.Context, s *model.LocationSample) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO location_history (`+locationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.Latitude, s.Longitude, s.Accuracy, s.Altitude, s.Heading, s.Speed, s.Timestamp,
	)
	return err
}

func (r *PostgresLocationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM location_history WHERE id = $1`, id)
	return err
}

func (r *PostgresLocationRepository) FindByUserID(ctx context.Context, userID string, q HistoryQuery) ([]*model.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + locationColumns + ` FROM location_history WHERE user_id = $1`)
	args := []interface{}{userID}
	if !q.From.IsZero() {
		args = append(args, q.From)
		fmt.Fprintf(&sb, ` AND timestamp >= $%d`, len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		fmt.Fprintf(&sb, ` AND timestamp <= $%d`, len(args))
	}
	args = append(args, q.EffectiveLimit())
	fmt.Fprintf(&sb, ` ORDER BY timestamp DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLocationSample)
}

func (r *PostgresLocationRepository) FindLatestByUserID(ctx context.Context, userID string) (*model.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+locationColumns+` FROM location_history WHERE user_id = $1 ORDER BY timestamp DESC LIMIT 1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	sample, err := pgx.CollectExactlyOneRow(rows, scanLocationSample)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sample, err
}

func scanLocationSample(row pgx.CollectableRow) (*model.LocationSample, error) {
	var s model.LocationSample
	err := row.Scan(&s.ID, &s.UserID, &s.Latitude, &s.Longitude, &s.Accuracy, &s.Altitude, &s.Heading, &s.Speed, &s.Timestamp)
	if err != nil {
		return nil, err
	}
	s.Timestamp = s.Timestamp.UTC()
	return &s, nil
}
