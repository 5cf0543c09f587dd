package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-relief-triage/internal/broadcast"
	"github.com/mr1hm/go-relief-triage/internal/config"
	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/intake"
	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBulkSize      = 500
)

// Store is everything the handlers read and write.
type Store interface {
	repository.RequestRepository
	repository.DonationRepository
	repository.ResponderRepository
}

// Intake triages incoming messages.
type Intake interface {
	Triage(ctx context.Context, s intake.Submission) (*intake.Result, error)
	SubmitBatch(ctx context.Context, subs []intake.Submission) (int, error)
}

type Handler struct {
	store       Store
	intake      Intake
	broadcaster *broadcast.Broadcaster
	index       *geo.Index
	matcher     *matching.Matcher
	triage      config.TriageConfig
}

func NewHandler(store Store, in Intake, broadcaster *broadcast.Broadcaster, index *geo.Index, triage config.TriageConfig) *Handler {
	return &Handler{
		store:       store,
		intake:      in,
		broadcaster: broadcaster,
		index:       index,
		matcher:     matching.New(index),
		triage:      triage,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")

	api.POST("/requests", h.createRequest)
	api.POST("/requests/bulk", h.bulkRequests)
	api.GET("/requests", h.listRequests)
	api.GET("/requests/stream", h.streamRequests)
	api.GET("/requests/map", h.requestsMap)
	api.GET("/requests/:id", h.getRequest)
	api.POST("/requests/:id/status", h.updateStatus)
	api.GET("/statistics", h.statistics)

	api.POST("/donations", h.createDonation)
	api.GET("/donations", h.listDonations)
	api.GET("/donations/nearby", h.nearbyDonations)
	api.POST("/donations/:id/commit", h.commitDonation)

	api.GET("/safe-zones/nearby", h.nearbySafeZones)

	api.POST("/needs", h.createNeed)
	api.GET("/needs", h.listNeeds)
	api.GET("/needs/summary", h.needsSummary)
	api.GET("/needs/matches/:location", h.needMatches)

	api.GET("/routes", h.routes)

	api.POST("/responders", h.createResponder)
	api.GET("/family-safety", h.listFamilies)
	api.POST("/family-safety/check", h.checkFamilies)
	api.POST("/family-safety/:id/status", h.updateFamilyStatus)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps store errors onto status codes. Anything unexpected is logged
// and reported as msg.
func fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrDonationCommitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error(msg, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// radius reads max_km, falling back when absent. ok is false when the
// value is present but unusable.
func radius(c *gin.Context, fallback float64) (float64, bool) {
	s := c.Query("max_km")
	if s == "" {
		return fallback, true
	}
	km, err := strconv.ParseFloat(s, 64)
	if err != nil || km <= 0 {
		return 0, false
	}
	return km, true
}
