package trial

import (
	"time"

	"github.com/safebite/server/internal/models"
)

const endingSoonThreshold = 2

// Clock classifies a trial from its server-issued start timestamp. All day
// arithmetic happens in the IANA zone captured when the trial started, so a
// traveling user neither gains nor loses a day.
type Clock struct {
	lengthDays int
}

func NewClock(lengthDays int) *Clock {
	return &Clock{lengthDays: lengthDays}
}

// Classify is pure and idempotent: same inputs, same TrialState. Days are
// counted on calendar boundaries, so the remaining count drops by exactly
// one at each local midnight and never goes negative.
func (c *Clock) Classify(trialStart time.Time, tzName string, now time.Time) models.TrialState {
	loc := locationOrUTC(tzName)

	startDay := civilDay(trialStart.In(loc))
	nowDay := civilDay(now.In(loc))

	elapsed := int(nowDay.Sub(startDay).Hours() / 24)
	remaining := c.lengthDays - elapsed
	if remaining < 0 {
		remaining = 0
	}

	status := models.TrialActive
	switch {
	case remaining == 0:
		status = models.TrialExpired
	case remaining <= endingSoonThreshold:
		status = models.TrialEndingSoon
	}

	return models.TrialState{
		TrialStart:    trialStart,
		TrialLength:   c.lengthDays,
		DaysRemaining: remaining,
		Status:        status,
	}
}

// civilDay truncates a local time to its calendar date, re-anchored in UTC
// so the day difference is an exact multiple of 24h regardless of DST.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func locationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
