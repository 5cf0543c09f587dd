package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/models"
)

type donationInput struct {
	DonorName string   `json:"donor_name"`
	Location  string   `json:"location" binding:"required"`
	Resources []string `json:"resources" binding:"required,min=1"`
	Quantity  string   `json:"quantity"`
	Contact   string   `json:"contact"`
	Notes     string   `json:"notes"`
}

func (h *Handler) createDonation(c *gin.Context) {
	var in donationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}

	d := &models.Donation{
		ID:        uuid.NewString(),
		DonorName: strings.TrimSpace(in.DonorName),
		Location:  strings.TrimSpace(in.Location),
		Resources: in.Resources,
		Quantity:  in.Quantity,
		Contact:   in.Contact,
		Notes:     in.Notes,
		Status:    models.DonationAvailable,
		PostedAt:  time.Now(),
	}
	if err := h.store.AddDonation(c.Request.Context(), d); err != nil {
		fail(c, err, "failed to store donation")
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) listDonations(c *gin.Context) {
	status := models.DonationStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", models.DonationAvailable, models.DonationCommitted:
	default:
		badRequest(c, "invalid status: "+string(status))
		return
	}

	donations, err := h.store.ListDonations(c.Request.Context(), status)
	if err != nil {
		fail(c, err, "failed to fetch donations")
		return
	}
	c.JSON(http.StatusOK, donations)
}

type commitInput struct {
	RequestID string `json:"request_id" binding:"required"`
}

func (h *Handler) commitDonation(c *gin.Context) {
	var in commitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetRequest(ctx, in.RequestID); err != nil {
		fail(c, err, "failed to fetch request")
		return
	}

	d, err := h.store.CommitDonation(ctx, c.Param("id"), in.RequestID)
	if err != nil {
		fail(c, err, "failed to commit donation")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) nearbyDonations(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	resource := strings.TrimSpace(c.Query("resource"))
	if location == "" || resource == "" {
		badRequest(c, "location and resource are required")
		return
	}
	maxKm, ok := radius(c, h.triage.DonorRadiusKm)
	if !ok {
		badRequest(c, "max_km must be a positive number")
		return
	}

	donors, err := h.store.ListDonations(c.Request.Context(), models.DonationAvailable)
	if err != nil {
		fail(c, err, "failed to fetch donations")
		return
	}

	need := models.Need{Location: location, Resource: resource}
	c.JSON(http.StatusOK, h.matcher.NeedsNearDonors(need, donors, maxKm))
}

func (h *Handler) nearbySafeZones(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		badRequest(c, "location is required")
		return
	}
	maxKm, ok := radius(c, h.triage.SafeZoneRadiusKm)
	if !ok {
		badRequest(c, "max_km must be a positive number")
		return
	}

	zones, err := h.store.ListSafeZones(c.Request.Context())
	if err != nil {
		fail(c, err, "failed to fetch safe zones")
		return
	}
	c.JSON(http.StatusOK, h.matcher.DonorsNearAffectedZone(location, zones, maxKm))
}

type needInput struct {
	Location    string              `json:"location" binding:"required"`
	Resource    string              `json:"need_type" binding:"required"`
	Quantity    string              `json:"quantity"`
	Urgency     models.UrgencyLevel `json:"urgency"`
	Description string              `json:"description"`
}

func (h *Handler) createNeed(c *gin.Context) {
	var in needInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}

	urgency := models.UrgencyMedium
	if in.Urgency != "" {
		level, ok := models.ParseUrgencyLevel(strings.ToUpper(string(in.Urgency)))
		if !ok {
			badRequest(c, "invalid urgency level: "+string(in.Urgency))
			return
		}
		urgency = level
	}

	n := &models.Need{
		ID:          uuid.NewString(),
		Location:    strings.TrimSpace(in.Location),
		Resource:    strings.TrimSpace(in.Resource),
		Quantity:    in.Quantity,
		Urgency:     urgency,
		Description: in.Description,
		Status:      models.NeedOpen,
		PostedAt:    time.Now(),
	}
	if err := h.store.AddNeed(c.Request.Context(), n); err != nil {
		fail(c, err, "failed to store need")
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) listNeeds(c *gin.Context) {
	status := models.NeedStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", models.NeedOpen, models.NeedFulfilled:
	default:
		badRequest(c, "invalid status: "+string(status))
		return
	}

	needs, err := h.store.ListNeeds(c.Request.Context(), status)
	if err != nil {
		fail(c, err, "failed to fetch needs")
		return
	}
	c.JSON(http.StatusOK, needs)
}

func (h *Handler) needsSummary(c *gin.Context) {
	needs, err := h.store.ListNeeds(c.Request.Context(), models.NeedOpen)
	if err != nil {
		fail(c, err, "failed to fetch needs")
		return
	}
	c.JSON(http.StatusOK, matching.NeedsSummary(needs))
}
