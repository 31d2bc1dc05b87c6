package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.Equal(t, "redis", checker.Name())
	require.NoError(t, checker.Check(context.Background()))
	assert.Contains(t, checker.Details(), "total_conns")

	mr.Close()
	assert.Error(t, checker.Check(context.Background()))
}

func TestRedisCheckerNilClient(t *testing.T) {
	checker := NewRedisChecker(nil)
	assert.Error(t, checker.Check(context.Background()))
	assert.Nil(t, checker.Details())
}
