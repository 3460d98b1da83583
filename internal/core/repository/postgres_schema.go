package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS location_history (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		latitude   DOUBLE PRECISION NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		accuracy   DOUBLE PRECISION,
		altitude   DOUBLE PRECISION,
		heading    DOUBLE PRECISION,
		speed      DOUBLE PRECISION,
		timestamp  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_location_history_user_time ON location_history (user_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS geofences (
		id             TEXT PRIMARY KEY,
		owner_user_id  TEXT NOT NULL,
		name           TEXT NOT NULL,
		center_lat     DOUBLE PRECISION NOT NULL,
		center_lng     DOUBLE PRECISION NOT NULL,
		radius_meters  DOUBLE PRECISION NOT NULL,
		kind           TEXT NOT NULL,
		alert_on_enter BOOLEAN NOT NULL,
		alert_on_exit  BOOLEAN NOT NULL,
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_geofences_owner ON geofences (owner_user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS geofence_alerts (
		id            TEXT PRIMARY KEY,
		geofence_id   TEXT NOT NULL,
		geofence_name TEXT NOT NULL,
		owner_user_id TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		transition    TEXT NOT NULL,
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		triggered_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_geofence_alerts_owner ON geofence_alerts (owner_user_id, triggered_at DESC)`,
	`CREATE TABLE IF NOT EXISTS speed_alerts (
		id        TEXT PRIMARY KEY,
		user_id   TEXT NOT NULL,
		speed     DOUBLE PRECISION NOT NULL,
		latitude  DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inactivity_alerts (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		detected_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS family_members (
		user_id   TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name      TEXT NOT NULL DEFAULT '',
		role      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_family_members_family ON family_members (family_id)`,
}

// MigratePostgres creates the tables used by the Postgres repositories when they are missing.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
