package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const statsCacheKey = "stats:admin"

// StatsAggregator computes moderation and booking counts for the admin
// console and keeps the result in Redis for a short while.
type StatsAggregator struct {
	props  store.PropertyStore
	appts  store.AppointmentStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsAggregator(props store.PropertyStore, appts store.AppointmentStore, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsAggregator {
	return &StatsAggregator{props: props, appts: appts, rdb: rdb, ttl: ttl, logger: logger.Named("stats")}
}

func (s *StatsAggregator) Compute(ctx context.Context) (*models.PropertyStats, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, statsCacheKey).Bytes()
		if err == nil {
			var stats models.PropertyStats
			if err := json.Unmarshal(data, &stats); err == nil {
				return &stats, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis get failed", zap.Error(err))
		}
	}

	byStatus, err := s.props.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Internal("count properties", err)
	}
	scheduled, err := s.props.ListScheduled(ctx)
	if err != nil {
		return nil, apperrors.Internal("list scheduled deletions", err)
	}
	byAppt, err := s.appts.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.Internal("count appointments", err)
	}

	stats := &models.PropertyStats{
		ByApprovalStatus: byStatus,
		PendingDeletion:  int64(len(scheduled)),
		ByAppointment:    byAppt,
	}
	for _, n := range byStatus {
		stats.Total += n
	}
	for _, n := range byAppt {
		stats.AppointmentsTotal += n
	}

	if s.rdb != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.rdb.Set(ctx, statsCacheKey, data, s.ttl).Err(); err != nil {
				s.logger.Warn("failed to cache stats", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// Invalidate drops the cached aggregate.
func (s *StatsAggregator) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("failed to drop cached stats", zap.Error(err))
	}
}

func (a *API) GetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := a.Stats.Compute(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: stats})
	}
}
