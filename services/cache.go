package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"skolu-backend/logger"
	"skolu-backend/models"
)

const balanceCacheTTL = 60 * time.Second

// BalanceCache keeps computed group balance summaries in Redis for a short
// while. A nil client disables caching entirely, so the app runs fine
// without Redis.
type BalanceCache struct {
	client *redis.Client
}

func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{client: client}
}

func balanceKey(groupID uuid.UUID) string {
	return "balances:group:" + groupID.String()
}

func (c *BalanceCache) Get(ctx context.Context, groupID uuid.UUID) (*models.GroupBalanceSummary, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, balanceKey(groupID)).Bytes()
	if err != nil {
		return nil, false
	}
	var summary models.GroupBalanceSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (c *BalanceCache) Set(ctx context.Context, summary *models.GroupBalanceSummary) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(summary.GroupID), data, balanceCacheTTL).Err(); err != nil {
		logger.Log.Debug("balance cache write failed",
			zap.String("group_id", summary.GroupID.String()), zap.Error(err))
	}
}

// Invalidate drops the cached summary after any expense, settlement or
// membership change.
func (c *BalanceCache) Invalidate(ctx context.Context, groupID uuid.UUID) {
	if c.client == nil {
		return
	}
	c.client.Del(ctx, balanceKey(groupID))
}
