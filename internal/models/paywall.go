package models

type PaywallSeverity string

const (
	SeverityInfo     PaywallSeverity = "info"
	SeverityWarning  PaywallSeverity = "warning"
	SeverityBlocking PaywallSeverity = "blocking"
)

type PaywallTrigger string

const (
	TriggerScanLimit PaywallTrigger = "scan_limit"
	TriggerAICoach   PaywallTrigger = "ai_coach"
	TriggerMealPlan  PaywallTrigger = "meal_plan"
	TriggerTrialEnd  PaywallTrigger = "trial_end"
)

// PaywallDecision is derived on every feature-use attempt and never
// persisted. Allowed tells the client whether the action proceeds;
// Remaining is nil when usage is unlimited.
type PaywallDecision struct {
	Allowed    bool            `json:"allowed"`
	ShouldShow bool            `json:"should_show"`
	Severity   PaywallSeverity `json:"severity,omitempty"`
	Trigger    PaywallTrigger  `json:"trigger,omitempty"`
	Message    string          `json:"message,omitempty"`
	Remaining  *int64          `json:"remaining,omitempty"`
}
