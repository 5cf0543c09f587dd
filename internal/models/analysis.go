package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type NeedCategory string

const (
	NeedFood     NeedCategory = "food"
	NeedWater    NeedCategory = "water"
	NeedMedical  NeedCategory = "medical"
	NeedShelter  NeedCategory = "shelter"
	NeedRescue   NeedCategory = "rescue"
	NeedClothing NeedCategory = "clothing"
	NeedUnknown  NeedCategory = "unknown"
)

// ParseNeedCategory maps free text onto the fixed category set.
// Anything unrecognized becomes NeedUnknown.
func ParseNeedCategory(s string) NeedCategory {
	switch c := NeedCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case NeedFood, NeedWater, NeedMedical, NeedShelter, NeedRescue, NeedClothing:
		return c
	default:
		return NeedUnknown
	}
}

type VulnerableTag string

const (
	VulnerableChildren VulnerableTag = "children"
	VulnerableBaby     VulnerableTag = "baby"
	VulnerableElderly  VulnerableTag = "elderly"
	VulnerablePregnant VulnerableTag = "pregnant"
	VulnerableDisabled VulnerableTag = "disabled"
)

func ParseVulnerableTag(s string) (VulnerableTag, bool) {
	switch t := VulnerableTag(strings.ToLower(strings.TrimSpace(s))); t {
	case VulnerableChildren, VulnerableBaby, VulnerableElderly, VulnerablePregnant, VulnerableDisabled:
		return t, true
	}
	return "", false
}

const (
	DefaultUrgencyBase = 5
	MinUrgencyBase     = 1
	MaxUrgencyBase     = 10
	UnknownLocation    = "unknown"
)

// AnalysisRecord is the validated form of what the text-analysis step
// extracted from a message.
type AnalysisRecord struct {
	Need             NeedCategory    `json:"need_type"`
	Location         string          `json:"location"`
	UrgencyBase      int             `json:"urgency_base_score"`
	VulnerableGroups []VulnerableTag `json:"vulnerable_groups"`
	ImmediateDanger  bool            `json:"has_immediate_danger"`
	PeopleCount      *int            `json:"estimated_people_count"`
	ExtendedDuration bool            `json:"extended_duration"`
	NeedsList        []string        `json:"needs_list"`
	// Defaulted lists the fields that were missing or invalid and were
	// filled with defaults during normalization.
	Defaulted []string `json:"defaulted_fields,omitempty"`
}

func (a AnalysisRecord) HasVulnerable(tag VulnerableTag) bool {
	for _, t := range a.VulnerableGroups {
		if t == tag {
			return true
		}
	}
	return false
}

// RawAnalysis is the untrusted analysis payload as decoded from JSON.
type RawAnalysis map[string]any

// Normalize validates a raw analysis and fills defaults for anything
// missing or malformed. It never fails.
func (r RawAnalysis) Normalize() AnalysisRecord {
	a := AnalysisRecord{
		Need:             NeedUnknown,
		Location:         UnknownLocation,
		UrgencyBase:      DefaultUrgencyBase,
		VulnerableGroups: []VulnerableTag{},
		NeedsList:        []string{},
	}

	if s, ok := r["need_type"].(string); ok {
		a.Need = ParseNeedCategory(s)
	} else {
		a.Defaulted = append(a.Defaulted, "need_type")
	}

	if s, ok := r["location"].(string); ok && strings.TrimSpace(s) != "" {
		a.Location = strings.TrimSpace(s)
	} else {
		a.Defaulted = append(a.Defaulted, "location")
	}

	if f, ok := toNumber(r["urgency_base_score"]); ok {
		a.UrgencyBase = clampInt(int(math.Round(f)), MinUrgencyBase, MaxUrgencyBase)
	} else {
		a.Defaulted = append(a.Defaulted, "urgency_base_score")
	}

	seen := make(map[VulnerableTag]bool)
	for _, s := range toStrings(r["vulnerable_groups"]) {
		if tag, ok := ParseVulnerableTag(s); ok && !seen[tag] {
			seen[tag] = true
			a.VulnerableGroups = append(a.VulnerableGroups, tag)
		}
	}

	a.ImmediateDanger = toBool(r["has_immediate_danger"])
	a.ExtendedDuration = toBool(r["extended_duration"])

	if f, ok := toNumber(r["estimated_people_count"]); ok && f >= 0 {
		n := int(math.Round(f))
		a.PeopleCount = &n
	}

	for _, s := range toStrings(r["needs_list"]) {
		if s = strings.TrimSpace(s); s != "" {
			a.NeedsList = append(a.NeedsList, s)
		}
	}

	return a
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		// single value sent instead of a list
		return []string{list}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
