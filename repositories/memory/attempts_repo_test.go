package memory

import (
	// Go Internal Packages
	"context"
	"fmt"
	"testing"
	"time"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func TestAttemptCounter(t *testing.T) {
	counter := NewAttemptCounter(time.Minute)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := counter.Record(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, counter.Reset(ctx, "s1"))
	n, err := counter.Record(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAttemptCounterEvictsExpiredEntries(t *testing.T) {
	clk := &fixedClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	counter := NewAttemptCounter(time.Minute)
	counter.Clock = clk
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := counter.Record(ctx, fmt.Sprintf("session-%d", i))
		require.NoError(t, err)
	}
	assert.Len(t, counter.entries, 1000)

	clk.now = clk.now.Add(time.Minute)
	n, err := counter.Record(ctx, "session-0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "an expired counter starts over")
	assert.Len(t, counter.entries, 1)
}
