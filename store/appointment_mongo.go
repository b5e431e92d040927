package store

import (
	"context"
	"errors"

	"github.com/dcode-github/property_marketplace/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAppointmentStore struct {
	coll *mongo.Collection
}

func NewMongoAppointmentStore(coll *mongo.Collection) *MongoAppointmentStore {
	return &MongoAppointmentStore{coll: coll}
}

// EnsureIndexes creates the unique live-slot index. Only documents that
// carry a liveSlot string are indexed, so cancelled and completed
// appointments never block a slot.
func (s *MongoAppointmentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "liveSlot", Value: 1}},
			Options: options.Index().
				SetName("ux_appointments_live_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"liveSlot": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "requesterId", Value: 1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "propertyId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}}},
	})
	return err
}

func (s *MongoAppointmentStore) Insert(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoAppointmentStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoAppointmentStore) Update(ctx context.Context, a *models.Appointment) error {
	prev := a.Version
	a.Version = prev + 1
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.ID, "version": prev}, a)
	if err != nil {
		a.Version = prev
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		a.Version = prev
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	return nil
}

func (s *MongoAppointmentStore) FindLive(ctx context.Context, propertyID primitive.ObjectID, date, slot string) (*models.Appointment, error) {
	var a models.Appointment
	filter := bson.M{"liveSlot": models.SlotKey(propertyID, date, slot)}
	err := s.coll.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoAppointmentStore) ListForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"requesterId": userID},
		bson.M{"ownerId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appts := []models.Appointment{}
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

func (s *MongoAppointmentStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByField(ctx, s.coll, "$status")
}
