package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

type responderInput struct {
	Name         string        `json:"name" binding:"required"`
	Role         string        `json:"role"`
	AssignedZone string        `json:"assigned_zone"`
	Family       models.Family `json:"family"`
}

func (h *Handler) createResponder(c *gin.Context) {
	var in responderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(in.Family.Location) == "" {
		badRequest(c, "family location is required")
		return
	}

	status := models.FamilyUnknown
	if in.Family.Status != "" {
		st, ok := models.ParseFamilyStatus(string(in.Family.Status))
		if !ok {
			badRequest(c, "invalid family status: "+string(in.Family.Status))
			return
		}
		status = st
	}

	r := &models.Responder{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		AssignedZone: strings.TrimSpace(in.AssignedZone),
		Family: models.Family{
			Members:  in.Family.Members,
			Location: strings.TrimSpace(in.Family.Location),
			Contact:  in.Family.Contact,
			Status:   status,
			Notes:    in.Family.Notes,
		},
	}
	if r.Family.Members == nil {
		r.Family.Members = []string{}
	}
	if err := h.store.AddResponder(c.Request.Context(), r); err != nil {
		fail(c, err, "failed to store responder")
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) listFamilies(c *gin.Context) {
	responders, err := h.store.ListResponders(c.Request.Context())
	if err != nil {
		fail(c, err, "failed to fetch responders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"families": responders, "count": len(responders)})
}

type familyCheckInput struct {
	Location string  `json:"location" binding:"required"`
	RadiusKm float64 `json:"radius_km"`
}

// checkFamilies finds the responder families near an affected location and
// logs a safety ping for each of them.
func (h *Handler) checkFamilies(c *gin.Context) {
	var in familyCheckInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if in.RadiusKm < 0 {
		badRequest(c, "radius_km must be positive")
		return
	}
	km := in.RadiusKm
	if km == 0 {
		km = h.triage.FamilyRadiusKm
	}

	responders, err := h.store.ListResponders(c.Request.Context())
	if err != nil {
		fail(c, err, "failed to fetch responders")
		return
	}

	location := strings.TrimSpace(in.Location)
	atRisk := h.matcher.FamiliesNearAffectedZone(location, responders, km)
	for _, a := range atRisk {
		slog.Info("family safety ping",
			"responder", a.ResponderID,
			"family_location", a.FamilyLocation,
			"affected", location,
			"contact", a.Contact,
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"affected_location": location,
		"families_at_risk":  atRisk,
		"count":             len(atRisk),
	})
}

type familyStatusInput struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *Handler) updateFamilyStatus(c *gin.Context) {
	var in familyStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	status, ok := models.ParseFamilyStatus(in.Status)
	if !ok {
		badRequest(c, "invalid family status: "+in.Status)
		return
	}

	r, err := h.store.UpdateFamilyStatus(c.Request.Context(), c.Param("id"), status, in.Notes, time.Now())
	if err != nil {
		fail(c, err, "failed to update family status")
		return
	}
	c.JSON(http.StatusOK, r)
}
