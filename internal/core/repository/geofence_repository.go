package repository

import (
	"context"
	"time"

	"familytrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GeofenceRepository interface {
	Create(ctx context.Context, fence *model.Geofence) error
	Update(ctx context.Context, fence *model.Geofence) error
	// FindByID returns nil, nil for an unknown id.
	FindByID(ctx context.Context, id string) (*model.Geofence, error)
	// FindByOwner returns every fence of the owner, newest first, including inactive ones.
	FindByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error)
	FindActiveByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error)
}

type MongoGeofenceRepository struct {
	collection *mongo.Collection
}

func NewMongoGeofenceRepository(db *mongo.Database) *MongoGeofenceRepository {
	return &MongoGeofenceRepository{
		collection: db.Collection("geofences"),
	}
}

func (r *MongoGeofenceRepository) Create(ctx context.Context, fence *model.Geofence) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, fence)
	return err
}

func (r *MongoGeofenceRepository) Update(ctx context.Context, fence *model.Geofence) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"id": fence.ID}, fence)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoGeofenceRepository) FindByID(ctx context.Context, id string) (*model.Geofence, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var fence model.Geofence
	err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&fence)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fence, nil
}

func (r *MongoGeofenceRepository) FindByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.find(ctx, bson.M{"owneruserid": ownerUserID})
}

func (r *MongoGeofenceRepository) FindActiveByOwner(ctx context.Context, ownerUserID string) ([]*model.Geofence, error) {
	return r.find(ctx, bson.M{"owneruserid": ownerUserID, "active": true})
}

func (r *MongoGeofenceRepository) find(ctx context.Context, filter bson.M) ([]*model.Geofence, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var fences []*model.Geofence
	if err = cursor.All(ctx, &fences); err != nil {
		return nil, err
	}
	return fences, nil
}
