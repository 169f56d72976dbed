package types_test

import (
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastPollStart(t *testing.T) {
	t.Parallel()

	settings := types.NewServerSettings(1)
	settings.Timezone = "UTC"
	settings.PollWeekday = int(time.Friday)
	settings.PollHour = 15
	settings.PollMinute = 30

	// 2026-10-16 is a Friday
	friday := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "exactly at start",
			now:  friday,
			want: friday,
		},
		{
			name: "later the same week",
			now:  friday.Add(50 * time.Hour),
			want: friday,
		},
		{
			name: "same weekday before start",
			now:  friday.Add(-time.Minute),
			want: friday.AddDate(0, 0, -7),
		},
		{
			name: "just before next start",
			now:  friday.AddDate(0, 0, 7).Add(-time.Second),
			want: friday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, settings.LastPollStart(tt.now))
		})
	}
}

func TestLastPollStartUsesTimezone(t *testing.T) {
	t.Parallel()

	settings := types.NewServerSettings(1)
	settings.Timezone = "Asia/Dubai" // UTC+4, no DST
	settings.PollWeekday = int(time.Friday)
	settings.PollHour = 20
	settings.PollMinute = 0

	now := time.Date(2026, 10, 16, 16, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC), settings.LastPollStart(now))
	assert.Equal(t, time.Date(2026, 10, 23, 16, 0, 0, 0, time.UTC), settings.NextPollStart(now))
}

func TestReminderOffsetsRoundTrip(t *testing.T) {
	t.Parallel()

	value, err := types.ReminderOffsets{60, 120}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[60,120]", value)

	var offsets types.ReminderOffsets
	require.NoError(t, offsets.Scan([]byte("[30]")))
	assert.Equal(t, types.ReminderOffsets{30}, offsets)

	require.ErrorIs(t, offsets.Scan(42), types.ErrUnsupportedOffsets)
}
