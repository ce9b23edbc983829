package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	assert.True(t, updated.Equal(start.Add(90*time.Minute)))

	clock.Set(start.Add(2 * time.Hour))
	assert.True(t, clock.Peek().Equal(start.Add(2*time.Hour)))
	assert.True(t, clock.Now().Equal(clock.Peek()), "a fixed clock does not tick")
}

func TestTickingClock(t *testing.T) {
	start := ReferenceTime()
	clock := NewTickingClock(start, time.Second)
	now := clock.NowFunc()

	assert.True(t, now().Equal(start))
	assert.True(t, now().Equal(start.Add(time.Second)))
	assert.True(t, clock.Peek().Equal(start.Add(2*time.Second)))
}
