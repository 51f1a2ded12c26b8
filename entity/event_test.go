package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventStatus(t *testing.T) {
	for _, valid := range []string{"upcoming", "ongoing", "finished"} {
		status, err := ParseEventStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(status))
	}

	_, err := ParseEventStatus("cancelled")
	assert.ErrorIs(t, err, ErrInvalidEventStatus)
}

func TestEventStatus_NextByTime(t *testing.T) {
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	testCases := []struct {
		name     string
		status   EventStatus
		now      time.Time
		expected EventStatus
	}{
		{
			name:     "upcoming stays before start",
			status:   EventStatusUpcoming,
			now:      start.Add(-time.Minute),
			expected: EventStatusUpcoming,
		},
		{
			name:     "upcoming becomes ongoing at start",
			status:   EventStatusUpcoming,
			now:      start,
			expected: EventStatusOngoing,
		},
		{
			name:     "upcoming jumps to finished when end already passed",
			status:   EventStatusUpcoming,
			now:      end.Add(time.Minute),
			expected: EventStatusFinished,
		},
		{
			name:     "ongoing stays before end",
			status:   EventStatusOngoing,
			now:      end.Add(-time.Minute),
			expected: EventStatusOngoing,
		},
		{
			name:     "ongoing becomes finished at end",
			status:   EventStatusOngoing,
			now:      end,
			expected: EventStatusFinished,
		},
		{
			name:     "finished never moves",
			status:   EventStatusFinished,
			now:      start.Add(-time.Hour),
			expected: EventStatusFinished,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.NextByTime(start, end, tc.now))
		})
	}
}

func TestEvent_Ended(t *testing.T) {
	event := Event{
		EndTime: time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC),
	}

	assert.False(t, event.Ended(event.EndTime.Add(-time.Second)))
	assert.True(t, event.Ended(event.EndTime))
	assert.True(t, event.Ended(event.EndTime.Add(time.Second)))
}
