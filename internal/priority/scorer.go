package priority

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

// Factor names used as keys of PriorityRecord.Breakdown.
const (
	FactorBaseUrgency      = "base_urgency"
	FactorTimeSensitivity  = "time_sensitivity"
	FactorVulnerableGroups = "vulnerable_groups"
	FactorImmediateDanger  = "immediate_danger"
	FactorPeopleCount      = "people_count"
)

var weights = map[string]float64{
	FactorBaseUrgency:      0.30,
	FactorTimeSensitivity:  0.25,
	FactorVulnerableGroups: 0.20,
	FactorImmediateDanger:  0.15,
	FactorPeopleCount:      0.10,
}

// Level thresholds, inclusive.
const (
	criticalThreshold = 80.0
	highThreshold     = 60.0
	mediumThreshold   = 40.0
)

type timeSensitivity struct {
	criticalHours [24]bool
	reason        string
}

func hours(ranges ...[2]int) [24]bool {
	var set [24]bool
	for _, r := range ranges {
		for h := r[0]; h < r[1]; h++ {
			set[h] = true
		}
	}
	return set
}

var timeSensitiveNeeds = map[models.NeedCategory]timeSensitivity{
	models.NeedShelter: {
		criticalHours: hours([2]int{18, 24}, [2]int{0, 6}),
		reason:        "Nighttime exposure is life-threatening",
	},
	models.NeedMedical: {
		criticalHours: hours([2]int{0, 24}),
		reason:        "Medical emergencies require immediate attention",
	},
	models.NeedFood: {
		criticalHours: hours([2]int{6, 9}, [2]int{12, 14}, [2]int{18, 21}),
		reason:        "Peak meal times for vulnerable populations",
	},
}

var vulnerablePoints = map[models.VulnerableTag]float64{
	models.VulnerableChildren: 40,
	models.VulnerableBaby:     70,
	models.VulnerableElderly:  35,
	models.VulnerablePregnant: 40,
	models.VulnerableDisabled: 35,
}

const (
	extendedDeprivationBonus = 12.0 // water or food withheld for days
	extendedOtherBonus       = 8.0
	babyInDangerBonus        = 15.0
	waterVulnerableBonus     = 12.0
)

// Score converts an analysis into a priority record. The hour of day is
// taken from now in whatever location now carries.
func Score(a models.AnalysisRecord, now time.Time) models.PriorityRecord {
	var reasons []string

	baseScore := float64(a.UrgencyBase) * 10
	if baseScore >= 80 {
		reasons = append(reasons, "High urgency keywords detected")
	}

	timeScore := TimeSensitivity(a.Need, now.Hour())
	if timeScore > 70 {
		if ts, ok := timeSensitiveNeeds[a.Need]; ok {
			reasons = append(reasons, ts.reason)
		}
	}

	vulnerableScore := VulnerableScore(a.VulnerableGroups)
	if vulnerableScore > 0 {
		names := make([]string, len(a.VulnerableGroups))
		for i, g := range a.VulnerableGroups {
			names[i] = string(g)
		}
		reasons = append(reasons, "Vulnerable groups present: "+strings.Join(names, ", "))
	}

	dangerScore := 0.0
	if a.ImmediateDanger {
		dangerScore = 100
		reasons = append(reasons, "Life-threatening situation detected")
	}

	peopleScore := PeopleScore(a.PeopleCount)
	if peopleScore > 50 {
		reasons = append(reasons, fmt.Sprintf("Multiple people affected (%d)", *a.PeopleCount))
	}

	contributions := map[string]float64{
		FactorBaseUrgency:      baseScore * weights[FactorBaseUrgency],
		FactorTimeSensitivity:  timeScore * weights[FactorTimeSensitivity],
		FactorVulnerableGroups: vulnerableScore * weights[FactorVulnerableGroups],
		FactorImmediateDanger:  dangerScore * weights[FactorImmediateDanger],
		FactorPeopleCount:      peopleScore * weights[FactorPeopleCount],
	}

	// fixed summation order keeps the float result reproducible
	total := contributions[FactorBaseUrgency] +
		contributions[FactorTimeSensitivity] +
		contributions[FactorVulnerableGroups] +
		contributions[FactorImmediateDanger] +
		contributions[FactorPeopleCount]

	if a.ExtendedDuration {
		if a.Need == models.NeedWater || a.Need == models.NeedFood {
			total += extendedDeprivationBonus
		} else {
			total += extendedOtherBonus
		}
		reasons = append(reasons, "Extended duration - suffering for multiple days")
	}

	if a.HasVulnerable(models.VulnerableBaby) && a.ImmediateDanger {
		total += babyInDangerBonus
		reasons = append(reasons, "CRITICAL: Baby/infant with life-threatening emergency")
	}

	if a.Need == models.NeedWater && len(a.VulnerableGroups) > 0 && a.ExtendedDuration {
		total += waterVulnerableBonus
		reasons = append(reasons, "Water deprivation with vulnerable groups")
	}

	if len(a.Defaulted) > 0 {
		reasons = append(reasons, "Incomplete analysis, defaults applied for: "+strings.Join(a.Defaulted, ", "))
	}

	breakdown := make(map[string]float64, len(contributions))
	for k, v := range contributions {
		breakdown[k] = round2(v)
	}

	total = round2(total)
	if reasons == nil {
		reasons = []string{}
	}

	return models.PriorityRecord{
		TotalScore:   total,
		UrgencyLevel: LevelFor(total),
		Breakdown:    breakdown,
		Reasons:      reasons,
		Timestamp:    now,
	}
}

// TimeSensitivity returns the 0-100 time sub-score for a need at an hour.
func TimeSensitivity(need models.NeedCategory, hour int) float64 {
	ts, ok := timeSensitiveNeeds[need]
	if !ok {
		return 30
	}
	if hour >= 0 && hour < 24 && ts.criticalHours[hour] {
		return 100
	}
	return 50
}

// VulnerableScore sums per-group points, capped at 100.
func VulnerableScore(groups []models.VulnerableTag) float64 {
	score := 0.0
	for _, g := range groups {
		score += vulnerablePoints[g]
	}
	return math.Min(100, score)
}

// PeopleScore scales the head count: one person (or unknown) is 40,
// five or more is 100.
func PeopleScore(count *int) float64 {
	if count == nil || *count <= 0 {
		return 40
	}
	return math.Min(100, 40+float64(*count-1)*15)
}

func LevelFor(total float64) models.UrgencyLevel {
	switch {
	case total >= criticalThreshold:
		return models.UrgencyCritical
	case total >= highThreshold:
		return models.UrgencyHigh
	case total >= mediumThreshold:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// Rank sorts requests by total score, highest first. Equal scores keep
// their input order.
func Rank(requests []models.Request) {
	slices.SortStableFunc(requests, func(a, b models.Request) int {
		switch {
		case a.Priority.TotalScore > b.Priority.TotalScore:
			return -1
		case a.Priority.TotalScore < b.Priority.TotalScore:
			return 1
		}
		return 0
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
