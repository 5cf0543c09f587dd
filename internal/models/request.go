package models

import (
	"errors"
	"time"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAssigned RequestStatus = "assigned"
	StatusResolved RequestStatus = "resolved"
)

func (s RequestStatus) order() int {
	switch s {
	case StatusPending:
		return 1
	case StatusAssigned:
		return 2
	case StatusResolved:
		return 3
	default:
		return 0
	}
}

func (s RequestStatus) Valid() bool {
	return s.order() > 0
}

// CanTransition reports whether a request may move from s to next.
// Transitions only move forward: pending -> assigned -> resolved, and
// pending may skip straight to resolved.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.order() > s.order()
}

// Request is a triaged assistance request.
type Request struct {
	ID         string         `json:"id"`
	Message    string         `json:"original_message"`
	Analysis   AnalysisRecord `json:"analysis"`
	Priority   PriorityRecord `json:"priority"`
	Status     RequestStatus  `json:"status"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// StatusUpdate is a lifecycle change requested by a responder.
type StatusUpdate struct {
	Status     RequestStatus
	AssignedTo string
	Notes      string
	At         time.Time
}

// Apply moves the request to the new status. Assignee and notes are only
// overwritten when provided.
func (r *Request) Apply(u StatusUpdate) error {
	if !r.Status.CanTransition(u.Status) {
		return ErrInvalidTransition
	}
	r.Status = u.Status
	if u.AssignedTo != "" {
		r.AssignedTo = u.AssignedTo
	}
	if u.Notes != "" {
		r.Notes = u.Notes
	}
	if u.Status == StatusResolved {
		at := u.At
		r.ResolvedAt = &at
	}
	return nil
}
