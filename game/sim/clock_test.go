package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Advance(t *testing.T) {
	c := NewClock(250)
	dt, ok := c.Advance(16)
	assert.True(t, ok)
	assert.Equal(t, 16.0, dt)

	dt, ok = c.Advance(1000)
	assert.True(t, ok)
	assert.Equal(t, 250.0, dt, "capped")
	assert.Equal(t, 266.0, c.Now())

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, ok = c.Advance(bad)
		assert.False(t, ok)
	}
	assert.Equal(t, 266.0, c.Now())

	_, ok = c.Advance(0)
	assert.True(t, ok)

	c.Reset()
	assert.Zero(t, c.Now())
}

func TestClock_NoCap(t *testing.T) {
	c := NewClock(0)
	dt, _ := c.Advance(5000)
	assert.Equal(t, 5000.0, dt)
}

func TestGameState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "game_over", GameOver.String())
	b, err := Paused.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "paused", string(b))
}

func TestGameState_UnmarshalText(t *testing.T) {
	var s GameState
	assert.NoError(t, s.UnmarshalText([]byte("game_over")))
	assert.Equal(t, GameOver, s)
	assert.Error(t, s.UnmarshalText([]byte("lost")))
}
