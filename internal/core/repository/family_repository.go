package repository

import (
	"context"
	"time"

	"familytrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// FamilyRepository is a read-only view of the identity service's family membership.
type FamilyRepository interface {
	// FindByUserID returns nil, nil when the user belongs to no family.
	FindByUserID(ctx context.Context, userID string) (*model.FamilyMember, error)
	FindByFamilyID(ctx context.Context, familyID string) ([]*model.FamilyMember, error)
}

type MongoFamilyRepository struct {
	collection *mongo.Collection
}

func NewMongoFamilyRepository(db *mongo.Database) *MongoFamilyRepository {
	return &MongoFamilyRepository{
		collection: db.Collection("family_members"),
	}
}

func (r *MongoFamilyRepository) FindByUserID(ctx context.Context, userID string) (*model.FamilyMember, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var member model.FamilyMember
	err := r.collection.FindOne(ctx, bson.M{"userid": userID}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MongoFamilyRepository) FindByFamilyID(ctx context.Context, familyID string) ([]*model.FamilyMember, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"familyid": familyID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*model.FamilyMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}
