package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/repository"
	"github.com/mr1hm/go-relief-triage/internal/routing"
)

// routes plans dispatch for the open urgent requests against the donations
// still available. Both snapshots are loaded concurrently.
func (h *Handler) routes(c *gin.Context) {
	var (
		requests  []models.Request
		donations []models.Donation
	)

	high := models.UrgencyHigh
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		requests, err = h.store.ListRequests(ctx, repository.RequestFilter{MinUrgency: &high})
		return err
	})
	g.Go(func() error {
		var err error
		donations, err = h.store.ListDonations(ctx, models.DonationAvailable)
		return err
	})
	if err := g.Wait(); err != nil {
		fail(c, err, "failed to load routing snapshot")
		return
	}

	open := requests[:0]
	for _, r := range requests {
		if r.Status != models.StatusResolved {
			open = append(open, r)
		}
	}

	c.JSON(http.StatusOK, routing.PlanRoutes(open, donations))
}

func (h *Handler) needMatches(c *gin.Context) {
	location := c.Param("location")
	maxKm, ok := radius(c, h.triage.DonorRadiusKm)
	if !ok {
		badRequest(c, "max_km must be a positive number")
		return
	}

	var (
		needs  []models.Need
		donors []models.Donation
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		needs, err = h.store.ListNeeds(ctx, models.NeedOpen)
		return err
	})
	g.Go(func() error {
		var err error
		donors, err = h.store.ListDonations(ctx, models.DonationAvailable)
		return err
	})
	if err := g.Wait(); err != nil {
		fail(c, err, "failed to load needs snapshot")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"location": location,
		"matches":  h.matcher.DonationMatches(location, needs, donors, maxKm),
	})
}
