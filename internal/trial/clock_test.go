package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/safebite/server/internal/models"
)

func TestClassify(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	clock := NewClock(14)

	tests := []struct {
		name          string
		tz            string
		now           time.Time
		wantRemaining int
		wantStatus    models.TrialStatus
	}{
		{
			name:          "day one",
			tz:            "UTC",
			now:           start.Add(6 * time.Hour),
			wantRemaining: 14,
			wantStatus:    models.TrialActive,
		},
		{
			name:          "midway",
			tz:            "UTC",
			now:           start.AddDate(0, 0, 7),
			wantRemaining: 7,
			wantStatus:    models.TrialActive,
		},
		{
			name:          "two days left",
			tz:            "UTC",
			now:           start.AddDate(0, 0, 12),
			wantRemaining: 2,
			wantStatus:    models.TrialEndingSoon,
		},
		{
			name:          "last day",
			tz:            "UTC",
			now:           start.AddDate(0, 0, 13),
			wantRemaining: 1,
			wantStatus:    models.TrialEndingSoon,
		},
		{
			name:          "expired on day fourteen",
			tz:            "UTC",
			now:           start.AddDate(0, 0, 14),
			wantRemaining: 0,
			wantStatus:    models.TrialExpired,
		},
		{
			name:          "long expired clamps at zero",
			tz:            "UTC",
			now:           start.AddDate(0, 0, 40),
			wantRemaining: 0,
			wantStatus:    models.TrialExpired,
		},
		{
			name: "counts days in the stored zone",
			tz:   "America/New_York",
			// 01:30 UTC on Mar 2 is still Mar 1 evening in New York, so
			// no day has elapsed yet.
			now:           time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC),
			wantRemaining: 14,
			wantStatus:    models.TrialActive,
		},
		{
			name:          "invalid zone falls back to UTC",
			tz:            "Mars/Olympus_Mons",
			now:           start.AddDate(0, 0, 7),
			wantRemaining: 7,
			wantStatus:    models.TrialActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := clock.Classify(start, tt.tz, tt.now)
			assert.Equal(t, tt.wantRemaining, state.DaysRemaining)
			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, 14, state.TrialLength)
		})
	}
}

func TestClassifyNeverIncreasesRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	clock := NewClock(14)

	prev := clock.Classify(start, "Europe/Sofia", start).DaysRemaining
	for d := 1; d <= 20; d++ {
		now := start.Add(time.Duration(d) * 17 * time.Hour)
		cur := clock.Classify(start, "Europe/Sofia", now).DaysRemaining
		assert.LessOrEqual(t, cur, prev, "remaining must be non-increasing at %v", now)
		prev = cur
	}
}

func TestClassifyDSTTransition(t *testing.T) {
	// US DST starts Mar 8 2026. The 23h local day must still count as
	// exactly one calendar day.
	start := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	clock := NewClock(14)

	before := clock.Classify(start, "America/New_York", start)
	after := clock.Classify(start, "America/New_York", start.AddDate(0, 0, 1))

	assert.Equal(t, before.DaysRemaining-1, after.DaysRemaining)
}
