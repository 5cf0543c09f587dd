package api

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mr1hm/go-relief-triage/internal/intake"
	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/repository"
)

// mockStore implements Store for testing
type mockStore struct {
	mu         sync.Mutex
	requests   []models.Request
	donations  []models.Donation
	zones      []models.SafeZone
	needs      []models.Need
	responders []models.Responder
}

func (m *mockStore) AddRequest(ctx context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, *r)
	return nil
}

func (m *mockStore) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := m.GetRequest(ctx, id)
	return err == nil, nil
}

func (m *mockStore) ListRequests(ctx context.Context, opts repository.RequestFilter) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := []models.Request{}
	for _, r := range m.requests {
		if opts.Status != nil && r.Status != *opts.Status {
			continue
		}
		if opts.Location != "" && !strings.EqualFold(r.Analysis.Location, opts.Location) {
			continue
		}
		if opts.MinUrgency != nil && r.Priority.UrgencyLevel.Rank() < opts.MinUrgency.Rank() {
			continue
		}
		results = append(results, r)
	}
	slices.SortStableFunc(results, func(a, b models.Request) int {
		return cmp.Compare(b.Priority.TotalScore, a.Priority.TotalScore)
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.requests {
		if m.requests[i].ID != id {
			continue
		}
		if err := m.requests[i].Apply(u); err != nil {
			return nil, err
		}
		r := m.requests[i]
		return &r, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) Statistics(ctx context.Context) (*repository.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.Statistics{
		Total:      len(m.requests),
		ByStatus:   map[string]int{},
		ByUrgency:  map[string]int{},
		ByLocation: map[string]int{},
	}
	for _, r := range m.requests {
		stats.ByStatus[string(r.Status)]++
		stats.ByUrgency[string(r.Priority.UrgencyLevel)]++
		stats.ByLocation[r.Analysis.Location]++
	}
	return stats, nil
}

func (m *mockStore) AddDonation(ctx context.Context, d *models.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donations = append(m.donations, *d)
	return nil
}

func (m *mockStore) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.donations {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) ListDonations(ctx context.Context, status models.DonationStatus) ([]models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := []models.Donation{}
	for _, d := range m.donations {
		if status == "" || d.Status == status {
			results = append(results, d)
		}
	}
	return results, nil
}

func (m *mockStore) CommitDonation(ctx context.Context, id, requestID string) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.donations {
		if m.donations[i].ID != id {
			continue
		}
		if !m.donations[i].Available() {
			return nil, models.ErrDonationCommitted
		}
		m.donations[i].Status = models.DonationCommitted
		m.donations[i].AssignedTo = requestID
		d := m.donations[i]
		return &d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) AddSafeZone(ctx context.Context, z *models.SafeZone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = append(m.zones, *z)
	return nil
}

func (m *mockStore) ListSafeZones(ctx context.Context) ([]models.SafeZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.zones), nil
}

func (m *mockStore) AddNeed(ctx context.Context, n *models.Need) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needs = append(m.needs, *n)
	return nil
}

func (m *mockStore) ListNeeds(ctx context.Context, status models.NeedStatus) ([]models.Need, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := []models.Need{}
	for _, n := range m.needs {
		if status == "" || n.Status == status {
			results = append(results, n)
		}
	}
	return results, nil
}

func (m *mockStore) AddResponder(ctx context.Context, r *models.Responder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders = append(m.responders, *r)
	return nil
}

func (m *mockStore) ListResponders(ctx context.Context) ([]models.Responder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.responders), nil
}

func (m *mockStore) UpdateFamilyStatus(ctx context.Context, id string, status models.FamilyStatus, notes string, at time.Time) (*models.Responder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.responders {
		if m.responders[i].ID != id {
			continue
		}
		m.responders[i].Family.Status = status
		if notes != "" {
			m.responders[i].Family.Notes = notes
		}
		m.responders[i].Family.LastContact = &at
		r := m.responders[i]
		return &r, nil
	}
	return nil, repository.ErrNotFound
}

// fakeIntake scores synchronously in UTC and records batches.
type fakeIntake struct {
	store   *mockStore
	batches [][]intake.Submission
}

func (f *fakeIntake) Triage(ctx context.Context, s intake.Submission) (*intake.Result, error) {
	if s.ID != "" {
		if req, err := f.store.GetRequest(ctx, s.ID); err == nil {
			return &intake.Result{Request: req}, nil
		}
	}
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Date(2024, 12, 3, 3, 0, 0, 0, time.UTC)
	}
	req := intake.Build(s, time.UTC)
	if err := f.store.AddRequest(ctx, req); err != nil {
		return nil, err
	}
	return &intake.Result{Request: req, Created: true}, nil
}

func (f *fakeIntake) SubmitBatch(ctx context.Context, subs []intake.Submission) (int, error) {
	f.batches = append(f.batches, subs)
	return len(subs), nil
}
