package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPropertyStore struct {
	coll *mongo.Collection
}

func NewMongoPropertyStore(coll *mongo.Collection) *MongoPropertyStore {
	return &MongoPropertyStore{coll: coll}
}

// EnsureIndexes creates the indexes used by the listing query and the
// deletion sweep.
func (s *MongoPropertyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "approvalStatus", Value: 1}, {Key: "scheduledForDeletion", Value: 1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
	})
	return err
}

func (s *MongoPropertyStore) Insert(ctx context.Context, p *models.Property) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return err
}

func (s *MongoPropertyStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Property, error) {
	var p models.Property
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoPropertyStore) Update(ctx context.Context, p *models.Property) error {
	prev := p.Version
	p.Version = prev + 1
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "version": prev}, p)
	if err != nil {
		p.Version = prev
		return err
	}
	if res.MatchedCount == 0 {
		p.Version = prev
		return s.missOrStale(ctx, p.ID)
	}
	return nil
}

func (s *MongoPropertyStore) missOrStale(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStale
}

func (s *MongoPropertyStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func dueFilter(now time.Time) bson.M {
	return bson.M{
		"approvalStatus":       models.ApprovalRejected,
		"scheduledForDeletion": bson.M{"$lte": now},
	}
}

func (s *MongoPropertyStore) DeleteIfDue(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	filter := dueFilter(now)
	filter["_id"] = id
	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (s *MongoPropertyStore) ListDue(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.coll.Find(ctx, dueFilter(now), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (s *MongoPropertyStore) ListScheduled(ctx context.Context) ([]models.Property, error) {
	filter := bson.M{
		"approvalStatus":       models.ApprovalRejected,
		"scheduledForDeletion": bson.M{"$ne": nil},
	}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var props []models.Property
	if err := cursor.All(ctx, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func listingQuery(f ListingFilter) bson.M {
	andConditions := bson.A{bson.M{"approvalStatus": models.ApprovalApproved}}
	if f.Location != "" {
		andConditions = append(andConditions, bson.M{"location": bson.M{
			"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(f.Location), Options: "i"},
		}})
	}
	if f.Type != "" {
		andConditions = append(andConditions, bson.M{"type": f.Type})
	}
	if f.Availability != "" {
		andConditions = append(andConditions, bson.M{"availability": f.Availability})
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		andConditions = append(andConditions, bson.M{"price": price})
	}
	if f.MinBeds != nil {
		andConditions = append(andConditions, bson.M{"beds": bson.M{"$gte": *f.MinBeds}})
	}
	return bson.M{"$and": andConditions}
}

func (s *MongoPropertyStore) ListApproved(ctx context.Context, f ListingFilter) ([]models.Property, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListingLimit
	}
	findOptions := options.Find().
		SetLimit(limit).
		SetSkip(f.Skip).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.coll.Find(ctx, listingQuery(f), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	props := []models.Property{}
	if err := cursor.All(ctx, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func (s *MongoPropertyStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByField(ctx, s.coll, "$approvalStatus")
}

func countByField(ctx context.Context, coll *mongo.Collection, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := map[string]int64{}
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.ID] = row.Count
	}
	return counts, cursor.Err()
}
