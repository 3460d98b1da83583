package repository

import (
	"familytrack/internal/core/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories bundles the durable collaborators of the tracking core.
type Repositories struct {
	Locations LocationRepository
	Geofences GeofenceRepository
	Alerts    AlertRepository
	Families  FamilyRepository
}

func NewMongoRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Locations: NewMongoLocationRepository(db),
		Geofences: NewMongoGeofenceRepository(db),
		Alerts:    NewMongoAlertRepository(db),
		Families:  NewMongoFamilyRepository(db),
	}
}

func NewPostgresRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Locations: NewPostgresLocationRepository(pool),
		Geofences: NewPostgresGeofenceRepository(pool),
		Alerts:    NewPostgresAlertRepository(pool),
		Families:  NewPostgresFamilyRepository(pool),
	}
}

// NewInMemoryRepositories seeds the family view with members; useful for local runs and tests.
func NewInMemoryRepositories(members ...*model.FamilyMember) *Repositories {
	families := NewInMemoryFamilyRepository()
	families.Add(members...)
	return &Repositories{
		Locations: NewInMemoryLocationRepository(),
		Geofences: NewInMemoryGeofenceRepository(),
		Alerts:    NewInMemoryAlertRepository(),
		Families:  families,
	}
}
