package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// BanCache remembers positive ban lookups so private messages from banned
// applicants are dropped without a store round trip. Only bans are cached:
// a ban is never lifted, so a stale entry cannot let anyone through.
type BanCache struct {
	data *expirable.LRU[int64, struct{}]
}

func NewBanCache(capacity int, ttl time.Duration) *BanCache {
	return &BanCache{
		data: expirable.NewLRU[int64, struct{}](capacity, nil, ttl),
	}
}

func (c *BanCache) Contains(applicantID int64) bool {
	if c == nil {
		return false
	}
	_, ok := c.data.Get(applicantID)
	return ok
}

func (c *BanCache) Add(applicantID int64) {
	if c == nil {
		return
	}
	c.data.Add(applicantID, struct{}{})
}
