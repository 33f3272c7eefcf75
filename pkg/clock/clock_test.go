package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	c := Fake(start)

	ch := c.After(time.Hour)
	require.Equal(t, 1, c.Waiters())

	c.Advance(30 * time.Minute)
	select {
	case <-ch:
		t.Fatal("waiter fired before its deadline")
	default:
	}

	c.Advance(30 * time.Minute)
	select {
	case fired := <-ch:
		assert.Equal(t, start.Add(time.Hour), fired)
	default:
		t.Fatal("waiter did not fire at its deadline")
	}
	assert.Zero(t, c.Waiters())
}

func TestFakeClock_NonPositiveDurationFiresImmediately(t *testing.T) {
	c := Fake(time.Unix(0, 0))

	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	now := Real().Now()
	assert.False(t, now.Before(before))
}
