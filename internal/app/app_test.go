package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/config"
)

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, OpenRedis(ctx, ""))

	mr := miniredis.RunT(t)
	rc := OpenRedis(ctx, "redis://"+mr.Addr()+"/0")
	require.NotNil(t, rc)
	defer rc.Close()
	require.NoError(t, rc.Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	// A bare host:port is accepted too.
	bare := OpenRedis(ctx, mr.Addr())
	require.NotNil(t, bare)
	bare.Close()

	mr.Close()
	assert.Nil(t, OpenRedis(ctx, "redis://"+mr.Addr()+"/0"))
}

func TestOpenDB_RequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}
