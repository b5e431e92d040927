package store

import (
	"context"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"github.com/karlseguin/ccache/v2"
)

// CachedUserStore fronts a UserStore with an LRU of user lookups. Inserts
// go straight to the backing store.
type CachedUserStore struct {
	UserStore
	cache *ccache.Cache
	ttl   time.Duration
}

func NewCachedUserStore(backing UserStore, maxSize int64, ttl time.Duration) *CachedUserStore {
	return &CachedUserStore{
		UserStore: backing,
		cache:     ccache.New(ccache.Configure().MaxSize(maxSize).ItemsToPrune(50)),
		ttl:       ttl,
	}
}

func (s *CachedUserStore) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	if item := s.cache.Get(userID); item != nil && !item.Expired() {
		u := item.Value().(models.User)
		return &u, nil
	}
	u, err := s.UserStore.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(userID, *u, s.ttl)
	return u, nil
}

func (s *CachedUserStore) Stop() { s.cache.Stop() }
