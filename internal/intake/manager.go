package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mr1hm/go-relief-triage/internal/broadcast"
	"github.com/mr1hm/go-relief-triage/internal/config"
	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/priority"
	"github.com/mr1hm/go-relief-triage/internal/repository"
	"github.com/mr1hm/go-relief-triage/internal/worker"
)

var ErrNotRunning = errors.New("intake manager not running")

// Submission is one incoming message together with the analysis produced
// for it upstream. The analysis is untrusted and normalized on intake.
type Submission struct {
	// ID is optional. A submission reusing a stored ID is skipped.
	ID         string             `json:"id,omitempty"`
	Message    string             `json:"message" binding:"required"`
	Analysis   models.RawAnalysis `json:"analysis"`
	ReceivedAt time.Time          `json:"received_at"`
}

// Result is a triaged request plus what intake raised alongside it.
type Result struct {
	*models.Request
	// Created is false when the submission repeated a stored ID.
	Created       bool                   `json:"-"`
	FamilyAlerts  []matching.FamilyAlert `json:"family_safety_alerts,omitempty"`
	ResourceAlert *ResourceAlert         `json:"resource_alert,omitempty"`
}

// ResourceAlert reports the need opened for a request and how many
// available donors could cover it.
type ResourceAlert struct {
	NeedID       string `json:"need_id"`
	NearbyDonors int    `json:"nearby_donors"`
}

// FollowUpStore is what intake reads and writes after a request is stored.
type FollowUpStore interface {
	AddNeed(ctx context.Context, n *models.Need) error
	ListDonations(ctx context.Context, status models.DonationStatus) ([]models.Donation, error)
	ListResponders(ctx context.Context) ([]models.Responder, error)
}

// needDescriptionLen caps how much of the message is copied onto a need.
const needDescriptionLen = 100

type Option func(*Manager)

// WithFollowUps opens a resource need for each supply request and checks
// responder families near the affected location.
func WithFollowUps(store FollowUpStore, index *geo.Index) Option {
	return func(m *Manager) {
		m.followUps = store
		m.matcher = matching.New(index)
	}
}

type Manager struct {
	cfg         *config.Config
	repo        repository.RequestRepository
	broadcaster *broadcast.Broadcaster
	followUps   FollowUpStore
	matcher     *matching.Matcher
	loc         *time.Location
	pool        *worker.WorkerPool[Submission]
	now         func() time.Time
}

func NewManager(cfg *config.Config, repo repository.RequestRepository, broadcaster *broadcast.Broadcaster, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		repo:        repo,
		broadcaster: broadcaster,
		loc:         cfg.Triage.Location(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, s Submission) error {
		_, err := m.process(ctx, s)
		return err
	}

	m.pool = worker.NewWorkerPool("intake", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)
	slog.Info("intake manager started", "workers", m.cfg.Worker.Count, "timezone", m.loc.String())
}

// Submit queues a submission for background triage.
func (m *Manager) Submit(ctx context.Context, s Submission) error {
	if m.pool == nil {
		return ErrNotRunning
	}
	return m.pool.Submit(ctx, m.stamp(s))
}

// SubmitBatch queues submissions in order and reports how many were
// accepted before ctx ended.
func (m *Manager) SubmitBatch(ctx context.Context, subs []Submission) (int, error) {
	for i, s := range subs {
		if err := m.Submit(ctx, s); err != nil {
			return i, err
		}
	}
	return len(subs), nil
}

// Triage scores and stores a single submission synchronously. A
// submission whose ID is already stored returns the stored request with
// Created unset.
func (m *Manager) Triage(ctx context.Context, s Submission) (*Result, error) {
	res, err := m.process(ctx, m.stamp(s))
	if err != nil {
		return nil, err
	}
	if !res.Created {
		req, err := m.repo.GetRequest(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		res.Request = req
	}
	return res, nil
}

func (m *Manager) Stop() {
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("intake manager stopped")
}

// stamp fixes the receive time at submission so queued messages are scored
// by when they arrived, not when a worker got to them.
func (m *Manager) stamp(s Submission) Submission {
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = m.now()
	}
	return s
}

func (m *Manager) process(ctx context.Context, s Submission) (*Result, error) {
	if s.ID != "" {
		exists, err := m.repo.Exists(ctx, s.ID)
		if err != nil {
			slog.Error("error checking existence", "id", s.ID, "error", err)
			return nil, err
		}
		if exists {
			slog.Debug("skipping duplicate submission", "id", s.ID)
			return &Result{}, nil
		}
	}

	req := Build(s, m.loc)

	if err := m.repo.AddRequest(ctx, req); err != nil {
		slog.Error("error adding request", "id", req.ID, "error", err)
		return nil, fmt.Errorf("error storing request: %w", err)
	}
	res := &Result{Request: req, Created: true}

	if m.broadcaster != nil && req.Priority.UrgencyLevel.Urgent() {
		m.broadcaster.Broadcast(req)
	}

	slog.Info("triaged request",
		"id", req.ID,
		"urgency", req.Priority.UrgencyLevel,
		"score", req.Priority.TotalScore,
		"location", req.Analysis.Location,
	)

	if m.followUps != nil && req.Analysis.Location != models.UnknownLocation {
		res.FamilyAlerts = m.checkFamilies(ctx, req)
		res.ResourceAlert = m.openNeed(ctx, req)
	}
	return res, nil
}

// checkFamilies pings the responder families near the request. The
// request is already stored, so failures are logged and skipped.
func (m *Manager) checkFamilies(ctx context.Context, req *models.Request) []matching.FamilyAlert {
	responders, err := m.followUps.ListResponders(ctx)
	if err != nil {
		slog.Warn("error listing responders", "id", req.ID, "error", err)
		return nil
	}

	alerts := m.matcher.FamiliesNearAffectedZone(req.Analysis.Location, responders, m.cfg.Triage.FamilyRadiusKm)
	for _, a := range alerts {
		slog.Warn("responder family near emergency",
			"request", req.ID,
			"responder", a.ResponderID,
			"family_location", a.FamilyLocation,
			"distance_km", a.DistanceKm,
			"priority", a.AlertPriority,
			"contact", a.Contact,
		)
	}
	return alerts
}

// openNeed turns a supply request into an open need and counts the donors
// who could cover it.
func (m *Manager) openNeed(ctx context.Context, req *models.Request) *ResourceAlert {
	switch req.Analysis.Need {
	case models.NeedFood, models.NeedWater, models.NeedMedical, models.NeedShelter:
	default:
		return nil
	}

	need := &models.Need{
		ID:          uuid.NewString(),
		Location:    req.Analysis.Location,
		Resource:    string(req.Analysis.Need),
		Quantity:    "Requested via emergency message",
		Urgency:     req.Priority.UrgencyLevel,
		Description: truncate(req.Message, needDescriptionLen),
		Status:      models.NeedOpen,
		PostedAt:    req.ReceivedAt,
	}
	if err := m.followUps.AddNeed(ctx, need); err != nil {
		slog.Warn("error opening need", "id", req.ID, "error", err)
		return nil
	}

	alert := &ResourceAlert{NeedID: need.ID}
	donors, err := m.followUps.ListDonations(ctx, models.DonationAvailable)
	if err != nil {
		slog.Warn("error listing donations", "id", req.ID, "error", err)
		return alert
	}
	alert.NearbyDonors = len(m.matcher.NeedsNearDonors(*need, donors, m.cfg.Triage.DonorRadiusKm))

	slog.Info("opened need",
		"request", req.ID,
		"need", need.ID,
		"resource", need.Resource,
		"nearby_donors", alert.NearbyDonors,
	)
	return alert
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Build turns a submission into a pending request, scoring it against the
// wall clock of loc at the time it was received.
func Build(s Submission, loc *time.Location) *models.Request {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	analysis := s.Analysis.Normalize()
	received := s.ReceivedAt.In(loc)

	return &models.Request{
		ID:         id,
		Message:    s.Message,
		Analysis:   analysis,
		Priority:   priority.Score(analysis, received),
		Status:     models.StatusPending,
		ReceivedAt: received,
	}
}
