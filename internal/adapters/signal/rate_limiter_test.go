package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityRateLimiterPerSender(t *testing.T) {
	rl := NewIdentityRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	assert.True(t, rl.Allow("bob"), "buckets are per identity")
}

func TestIdentityRateLimiterForget(t *testing.T) {
	rl := NewIdentityRateLimiter(0.001, 1)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.Equal(t, 1, rl.Len())

	rl.Forget("alice")
	assert.Zero(t, rl.Len())
	assert.True(t, rl.Allow("alice"), "a forgotten sender starts with a full bucket")
}
