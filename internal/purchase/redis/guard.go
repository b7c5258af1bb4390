package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

// Guard deduplicates payment callbacks: the first signal for a given
// purchase/status pair claims a short-lived key, redeliveries see the claim
// and return the current purchase state instead of re-driving side effects.
// The state machine is idempotent without it; the guard saves the work.
type Guard struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, log *logger.Logger) *Guard {
	return &Guard{Client: client, Logger: log}
}

// claim TTL defaults to 2 minutes: long enough to cover a slow completion,
// short enough that a crashed handler does not block a legitimate retry
func (g *Guard) claimTTL() time.Duration {
	defaultTTL := 2 * time.Minute

	ttlStr := os.Getenv("PAYMENT_GUARD_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		g.Logger.Warn("REDIS", fmt.Sprintf("invalid PAYMENT_GUARD_TTL_SECONDS %q, using default", ttlStr))
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

func key(purchaseID string, status models.PaymentStatus) string {
	return fmt.Sprintf("payment_signal:%s:%s", purchaseID, status)
}

// Acquire claims the signal. Returns false when another callback for the same
// transition already holds the claim.
func (g *Guard) Acquire(purchaseID string, status models.PaymentStatus) (bool, error) {
	ok, err := g.Client.SetNX(context.Background(), key(purchaseID, status), time.Now().UTC().Format(time.RFC3339), g.claimTTL()).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the claim early, for transitions that were rejected before
// any side effect ran.
func (g *Guard) Release(purchaseID string, status models.PaymentStatus) error {
	_, err := g.Client.Del(context.Background(), key(purchaseID, status)).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}
