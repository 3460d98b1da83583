package repository

import (
	"context"
	"errors"
	"time"

	"familytrack/internal/core/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresGeofenceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresGeofenceRepository(pool *pgxpool.Pool) *PostgresGeofenceRepository {
	return &PostgresGeofenceRepository{pool: pool}
}

const geofenceColumns = `id, owner_user_id, name, center_lat, center_lng, radius_meters, kind,
	alert_on_enter, alert_on_exit, active, created_at, updated_at`

func (r *PostgresGeofenceRepository) Create(ctx context.Context, g *model.Geofence) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO geofences (`+geofenceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.OwnerUserID, g.Name, g.CenterLat, g.CenterLng, g.RadiusMeters, string(g.Kind),
		g.AlertOnEnter, g.AlertOnExit, g.Active, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *PostgresGeofenceRepository) Update(ctx context.Context, g *model.Geofence) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE geofences SET name = $2, center_lat = $3, center_lng = $4, radius_meters = $5, kind = $6,
			alert_on_enter = $7, alert_on_exit = $8, active = $9, updated_at = $10
		 WHERE id = $1`,
		g.ID, g.Name, g.CenterLat, g.CenterLng, g.RadiusMeters, string(g.Kind),
		g.AlertOnEnter, g.AlertOnExit, g.Active, g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresGeofenceRepository) FindByID(ctx context.Context, id string) (*model.Geofence, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	fence, err := pgx.CollectExactlyOneRow(rows, scanGeofence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return fence, err
}

func (r *PostgresGeofenceRepository) FindByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.find(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE owner_user_id = $1 ORDER BY created_at DESC`, ownerUserID)
}

func (r *PostgresGeofenceRepository) FindActiveByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.find(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE owner_user_id = $1 AND active ORDER BY created_at DESC`, ownerUserID)
}

func (r *PostgresGeofenceRepository) find(ctx context.Context, query string, args ...interface{}) ([]*model.Geofence, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanGeofence)
}

func scanGeofence(row pgx.CollectableRow) (*model.Geofence, error) {
	var (
		g    model.Geofence
		kind string
	)
	err := row.Scan(&g.ID, &g.OwnerUserID, &g.Name, &g.CenterLat, &g.CenterLng, &g.RadiusMeters, &kind,
		&g.AlertOnEnter, &g.AlertOnExit, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Kind = model.GeofenceKind(kind)
	return &g, nil
}
