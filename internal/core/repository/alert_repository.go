package repository

import (
	"context"
	"time"

	"familytrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultAlertLimit = 50

type AlertRepository interface {
	CreateGeofenceAlert(ctx context.Context, alert *model.GeofenceAlert) error
	// FindGeofenceAlertsByOwner pages through transition alerts of the owner's fences, newest first.
	FindGeofenceAlertsByOwner(ctx context.Context, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error)
	CreateSpeedAlert(ctx context.Context, alert *model.SpeedAlert) error
	CreateInactivityAlert(ctx context.Context, alert *model.InactivityAlert) error
}

type MongoAlertRepository struct {
	geofenceAlerts   *mongo.Collection
	speedAlerts      *mongo.Collection
	inactivityAlerts *mongo.Collection
}

func NewMongoAlertRepository(db *mongo.Database) *MongoAlertRepository {
	return &MongoAlertRepository{
		geofenceAlerts:   db.Collection("geofence_alerts"),
		speedAlerts:      db.Collection("speed_alerts"),
		inactivityAlerts: db.Collection("inactivity_alerts"),
	}
}

func (r *MongoAlertRepository) CreateGeofenceAlert(ctx context.Context, alert *model.GeofenceAlert) error {
	return insert(ctx, r.geofenceAlerts, alert)
}

func (r *MongoAlertRepository) FindGeofenceAlertsByOwner(ctx context.Context, ownerUserID string, limit, offset int) ([]*model.GeofenceAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = page(limit, offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "triggeredat", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.geofenceAlerts.Find(ctx, bson.M{"owneruserid": ownerUserID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []*model.GeofenceAlert
	if err = cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *MongoAlertRepository) CreateSpeedAlert(ctx context.Context, alert *model.SpeedAlert) error {
	return insert(ctx, r.speedAlerts, alert)
}

func (r *MongoAlertRepository) CreateInactivityAlert(ctx context.Context, alert *model.InactivityAlert) error {
	return insert(ctx, r.inactivityAlerts, alert)
}

func insert(ctx context.Context, collection *mongo.Collection, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := collection.InsertOne(ctx, doc)
	return err
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultAlertLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
