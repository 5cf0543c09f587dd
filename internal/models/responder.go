package models

import (
	"strings"
	"time"
)

type FamilyStatus string

const (
	FamilyUnknown   FamilyStatus = "unknown"
	FamilySafe      FamilyStatus = "safe"
	FamilyNeedsHelp FamilyStatus = "needs_help"
)

func ParseFamilyStatus(s string) (FamilyStatus, bool) {
	switch st := FamilyStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case FamilyUnknown, FamilySafe, FamilyNeedsHelp:
		return st, true
	}
	return "", false
}

// Family is the household a responder leaves behind while deployed.
type Family struct {
	Members     []string     `json:"members"`
	Location    string       `json:"location"`
	Contact     string       `json:"contact"`
	Status      FamilyStatus `json:"status"`
	LastContact *time.Time   `json:"last_contact,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

type Responder struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	AssignedZone string `json:"assigned_zone"`
	Family       Family `json:"family"`
}
