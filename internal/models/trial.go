package models

import "time"

type TrialStatus string

const (
	TrialActive     TrialStatus = "active"
	TrialEndingSoon TrialStatus = "ending_soon"
	TrialExpired    TrialStatus = "expired"
)

// TrialState classifies where a user sits in their free-trial lifecycle.
// DaysRemaining counts whole calendar days in the timezone captured at
// trial start, so a traveling user neither gains nor loses a day.
type TrialState struct {
	TrialStart    time.Time   `json:"trial_start"`
	TrialLength   int         `json:"trial_length_days"`
	DaysRemaining int         `json:"days_remaining"`
	Status        TrialStatus `json:"status"`
}
