package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMissThenHit(t *testing.T) {
	c := New()
	_, ok := c.Lookup(0x8000)
	assert.False(t, ok)

	c.Insert(0x8000, 0x1000)
	host, ok := c.Lookup(0x8000)
	assert.True(t, ok)
	assert.EqualValues(t, 0x1000, host)
	assert.Equal(t, 1, c.Len())
}
