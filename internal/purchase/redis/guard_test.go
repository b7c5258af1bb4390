package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-commerce/internal/logger"
	"ms-commerce/internal/models"
)

func setupGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to create miniredis")

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewGuard(client, logger.NewLogger()), mr
}

func TestAcquireClaimsOnce(t *testing.T) {
	guard, mr := setupGuard(t)
	defer mr.Close()

	acquired, err := guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// a redelivered callback for the same transition is shut out
	acquired, err = guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.False(t, acquired)
}

func TestAcquireSeparatesTransitions(t *testing.T) {
	guard, mr := setupGuard(t)
	defer mr.Close()

	acquired, err := guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// a different transition of the same purchase gets its own claim
	acquired, err = guard.Acquire("p-1", models.PaymentFailed)
	assert.NoError(t, err)
	assert.True(t, acquired)

	// and so does the same transition of another purchase
	acquired, err = guard.Acquire("p-2", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestReleaseFreesTheClaim(t *testing.T) {
	guard, mr := setupGuard(t)
	defer mr.Close()

	acquired, err := guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)

	assert.NoError(t, guard.Release("p-1", models.PaymentCompleted))

	acquired, err = guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestClaimExpires(t *testing.T) {
	guard, mr := setupGuard(t)
	defer mr.Close()

	acquired, err := guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)

	mr.FastForward(3 * time.Minute)

	acquired, err = guard.Acquire("p-1", models.PaymentCompleted)
	assert.NoError(t, err)
	assert.True(t, acquired)
}
