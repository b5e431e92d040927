package store

import (
	"context"
	"testing"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoPropertyStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get missing returns ErrNotFound", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "marketplace.properties", mtest.FirstBatch))
		s := NewMongoPropertyStore(mt.Coll)
		_, err := s.Get(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get decodes document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "marketplace.properties", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "title", Value: "Loft"},
			{Key: "approvalStatus", Value: "pending"},
			{Key: "rejectionReason", Value: nil},
			{Key: "version", Value: int64(3)},
		}))
		s := NewMongoPropertyStore(mt.Coll)
		p, err := s.Get(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, "Loft", p.Title)
		assert.Equal(mt, models.ApprovalPending, p.ApprovalStatus)
		assert.Nil(mt, p.RejectionReason)
		assert.Equal(mt, int64(3), p.Version)
	})

	mt.Run("update with stale version", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "marketplace.properties", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)
		s := NewMongoPropertyStore(mt.Coll)
		p := &models.Property{ID: primitive.NewObjectID(), Version: 2}
		assert.ErrorIs(mt, s.Update(context.Background(), p), ErrStale)
		assert.Equal(mt, int64(2), p.Version)
	})

	mt.Run("update bumps version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		s := NewMongoPropertyStore(mt.Coll)
		p := &models.Property{ID: primitive.NewObjectID(), Version: 2}
		require.NoError(mt, s.Update(context.Background(), p))
		assert.Equal(mt, int64(3), p.Version)
	})

	mt.Run("delete if due reports deletion", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		s := NewMongoPropertyStore(mt.Coll)
		deleted, err := s.DeleteIfDue(context.Background(), primitive.NewObjectID(), time.Now())
		require.NoError(mt, err)
		assert.True(mt, deleted)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		s := NewMongoPropertyStore(mt.Coll)
		assert.ErrorIs(mt, s.Delete(context.Background(), primitive.NewObjectID()), ErrNotFound)
	})
}

func TestMongoAppointmentStore_InsertDuplicateSlot(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate key maps to ErrDuplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: marketplace.appointments index: ux_appointments_live_slot",
		}))
		s := NewMongoAppointmentStore(mt.Coll)
		a := &models.Appointment{PropertyID: primitive.NewObjectID(), Date: "2025-01-10", Time: "14:00"}
		a.SetStatus(models.AppointmentPending)
		assert.ErrorIs(mt, s.Insert(context.Background(), a), ErrDuplicate)
	})

	mt.Run("insert assigns id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := NewMongoAppointmentStore(mt.Coll)
		a := &models.Appointment{}
		require.NoError(mt, s.Insert(context.Background(), a))
		assert.False(mt, a.ID.IsZero())
	})
}

func TestListingQuery(t *testing.T) {
	minPrice := 1000.0
	q := listingQuery(ListingFilter{Location: "a.b", MinPrice: &minPrice})
	and, ok := q["$and"].(bson.A)
	require.True(t, ok)
	require.Len(t, and, 3)
	assert.Equal(t, bson.M{"approvalStatus": models.ApprovalApproved}, and[0])
	loc := and[1].(bson.M)["location"].(bson.M)["$regex"].(primitive.Regex)
	assert.Equal(t, `a\.b`, loc.Pattern)
	assert.Equal(t, bson.M{"price": bson.M{"$gte": 1000.0}}, and[2])
}
