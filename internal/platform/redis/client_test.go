package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/internal/platform/config"
)

func TestOpen_EmptyURLMeansDisabled(t *testing.T) {
	c, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOpen_RejectsMalformedURL(t *testing.T) {
	_, err := Open(context.Background(), config.RedisConfig{URL: "memcached://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}
