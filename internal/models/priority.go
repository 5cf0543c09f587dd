package models

import "time"

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

// Rank orders levels so that CRITICAL > HIGH > MEDIUM > LOW. Unknown
// levels rank below LOW.
func (l UrgencyLevel) Rank() int {
	switch l {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}

// Urgent reports whether the level qualifies for dispatch routing.
func (l UrgencyLevel) Urgent() bool {
	return l == UrgencyCritical || l == UrgencyHigh
}

func ParseUrgencyLevel(s string) (UrgencyLevel, bool) {
	switch UrgencyLevel(s) {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return UrgencyLevel(s), true
	}
	return "", false
}

// PriorityRecord is computed once at intake and never edited afterwards.
type PriorityRecord struct {
	TotalScore   float64            `json:"total_score"`
	UrgencyLevel UrgencyLevel       `json:"urgency_level"`
	Breakdown    map[string]float64 `json:"score_breakdown"`
	Reasons      []string           `json:"priority_reasons"`
	Timestamp    time.Time          `json:"timestamp"`
}
