package repository

import (
	"context"
	"time"

	"familytrack/internal/core/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresAlertRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAlertRepository(pool *pgxpool.Pool) *PostgresAlertRepository {
	return &PostgresAlertRepository{pool: pool}
}

func (r *PostgresAlertRepository) CreateGeofenceAlert(ctx context.Context, a *model.GeofenceAlert) error {
	return r.exec(ctx,
		`INSERT INTO geofence_alerts (id, geofence_id, geofence_name, owner_user_id, user_id, transition, latitude, longitude, triggered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.GeofenceID, a.GeofenceName, a.OwnerUserID, a.UserID, string(a.Transition), a.Latitude, a.Longitude, a.TriggeredAt,
	)
}

func (r *PostgresAlertRepository) FindGeofenceAlertsByOwner(ctx context.Context, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = page(limit, offset)
	rows, err := r.pool.Query(ctx,
		`SELECT id, geofence_id, geofence_name, owner_user_id, user_id, transition, latitude, longitude, triggered_at
		 FROM geofence_alerts WHERE owner_user_id = $1
		 ORDER BY triggered_at DESC LIMIT $2 OFFSET $3`,
		ownerUserID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.GeofenceAlert, error) {
		var (
			a          model.GeofenceAlert
			transition string
		)
		err := row.Scan(&a.ID, &a.GeofenceID, &a.GeofenceName, &a.OwnerUserID, &a.UserID, &transition,
			&a.Latitude, &a.Longitude, &a.TriggeredAt)
		a.Transition = model.Transition(transition)
		return &a, err
	})
}

func (r *PostgresAlertRepository) CreateSpeedAlert(ctx context.Context, a *model.SpeedAlert) error {
	return r.exec(ctx,
		`INSERT INTO speed_alerts (id, user_id, speed, latitude, longitude, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.SpeedMps, a.Latitude, a.Longitude, a.Timestamp,
	)
}

func (r *PostgresAlertRepository) CreateInactivityAlert(ctx context.Context, a *model.InactivityAlert) error {
	return r.exec(ctx,
		`INSERT INTO inactivity_alerts (id, user_id, last_seen_at, detected_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.UserID, a.LastSeenAt, a.DetectedAt,
	)
}

func (r *PostgresAlertRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}
