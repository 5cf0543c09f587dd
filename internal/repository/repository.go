package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

var ErrNotFound = errors.New("not found")

type RequestFilter struct {
	Limit      int // 0 means no limit
	Offset     int
	Status     *models.RequestStatus
	Location   string               // case-insensitive exact match on the analysed location
	MinUrgency *models.UrgencyLevel // >= this level (e.g., HIGH includes HIGH and CRITICAL)
}

// Statistics are request counts for the coordination dashboard.
type Statistics struct {
	Total      int            `json:"total_requests"`
	ByStatus   map[string]int `json:"by_status"`
	ByUrgency  map[string]int `json:"by_urgency"`
	ByLocation map[string]int `json:"by_location"`
}

type RequestRepository interface {
	AddRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListRequests(ctx context.Context, opts RequestFilter) ([]models.Request, error)
	UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Request, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

type DonationRepository interface {
	AddDonation(ctx context.Context, d *models.Donation) error
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	ListDonations(ctx context.Context, status models.DonationStatus) ([]models.Donation, error)
	CommitDonation(ctx context.Context, id, requestID string) (*models.Donation, error)
	AddSafeZone(ctx context.Context, z *models.SafeZone) error
	ListSafeZones(ctx context.Context) ([]models.SafeZone, error)
	AddNeed(ctx context.Context, n *models.Need) error
	ListNeeds(ctx context.Context, status models.NeedStatus) ([]models.Need, error)
}

type ResponderRepository interface {
	AddResponder(ctx context.Context, r *models.Responder) error
	ListResponders(ctx context.Context) ([]models.Responder, error)
	UpdateFamilyStatus(ctx context.Context, id string, status models.FamilyStatus, notes string, at time.Time) (*models.Responder, error)
}
