package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecretCache(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newSecretCache(time.Minute, func() time.Time { return now })

	c.put("jwt-secret", "s3cret")
	v, ok := c.get("jwt-secret")
	assert.True(t, ok)
	assert.Equal(t, "s3cret", v)

	now = now.Add(time.Minute)
	_, ok = c.get("jwt-secret")
	assert.False(t, ok, "entry expires after ttl")

	c.put("a", "1")
	c.clear()
	_, ok = c.get("a")
	assert.False(t, ok)

	var disabled *secretCache
	disabled.put("a", "1")
	_, ok = disabled.get("a")
	assert.False(t, ok)
}
