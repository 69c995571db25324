package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, int64(10), c.Now())
	assert.Equal(t, int64(20), c.Now())

	c.Advance(100)
	assert.Equal(t, int64(130), c.Now())

	c.Step = 0
	assert.Equal(t, int64(130), c.Now())
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	b := c.Now()
	assert.GreaterOrEqual(t, b-a, int64(time.Millisecond))
}

func TestProcessCPUClock(t *testing.T) {
	c := NewProcessCPUClock()
	a := c.Now()
	x := 0
	for i := range 1_000_000 {
		x += i
	}
	b := c.Now()
	assert.GreaterOrEqual(t, b, a)
	assert.Positive(t, x)
}
