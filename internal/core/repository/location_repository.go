package repository

import (
	"context"
	"time"

	"familytrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// HistoryQuery filters a user's history to [From, To]. Zero bounds are open.
type HistoryQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

// EffectiveLimit clamps Limit to (0, MaxHistoryLimit], defaulting to DefaultHistoryLimit.
func (q HistoryQuery) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultHistoryLimit
	case q.Limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return q.Limit
}

func (q HistoryQuery) contains(ts time.Time) bool {
	if !q.From.IsZero() && ts.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && ts.After(q.To) {
		return false
	}
	return true
}

type LocationRepository interface {
	Create(ctx context.Context, sample *model.LocationSample) error
	// Delete removes a sample by id. Only used to undo an append whose ingestion failed.
	Delete(ctx context.Context, id string) error
	// FindByUserID returns samples newest first.
	FindByUserID(ctx context.Context, userID string, q HistoryQuery) ([]*model.LocationSample, error)
	// FindLatestByUserID returns nil, nil when the user has no history.
	FindLatestByUserID(ctx context.Context, userID string) (*model.LocationSample, error)
}

type MongoLocationRepository struct {
	collection *mongo.Collection
}

func NewMongoLocationRepository(db *mongo.Database) *MongoLocationRepository {
	return &MongoLocationRepository{
		collection: db.Collection("location_history"),
	}
}

// EnsureIndexes creates the (userid, timestamp) index used by history queries.
func (r *MongoLocationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userid", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}

func (r *MongoLocationRepository) Create(ctx context.Context, sample *model.LocationSample) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, sample)
	return err
}

func (r *MongoLocationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	return err
}

func (r *MongoLocationRepository) FindByUserID(ctx context.Context, userID string, q HistoryQuery) ([]*model.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"userid": userID}
	window := bson.M{}
	if !q.From.IsZero() {
		window["$gte"] = q.From
	}
	if !q.To.IsZero() {
		window["$lte"] = q.To
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(q.EffectiveLimit()))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var samples []*model.LocationSample
	if err = cursor.All(ctx, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *MongoLocationRepository) FindLatestByUserID(ctx context.Context, userID string) (*model.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})
	var sample model.LocationSample
	err := r.collection.FindOne(ctx, bson.M{"userid": userID}, opts).Decode(&sample)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}
