package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-relief-triage/internal/intake"
	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/repository"
)

func (h *Handler) createRequest(c *gin.Context) {
	var s intake.Submission
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.intake.Triage(c.Request.Context(), s)
	if err != nil {
		fail(c, err, "failed to triage request")
		return
	}
	if !res.Created {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) bulkRequests(c *gin.Context) {
	var subs []intake.Submission
	if err := c.ShouldBindJSON(&subs); err != nil {
		badRequest(c, err.Error())
		return
	}
	if len(subs) == 0 || len(subs) > maxBulkSize {
		badRequest(c, "batch must hold between 1 and "+strconv.Itoa(maxBulkSize)+" messages")
		return
	}
	for i, s := range subs {
		if strings.TrimSpace(s.Message) == "" {
			badRequest(c, "message "+strconv.Itoa(i)+" is empty")
			return
		}
	}

	n, err := h.intake.SubmitBatch(c.Request.Context(), subs)
	if err != nil {
		fail(c, err, "failed to queue batch")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": n})
}

func (h *Handler) listRequests(c *gin.Context) {
	filter, ok := requestFilter(c)
	if !ok {
		return
	}

	requests, err := h.store.ListRequests(c.Request.Context(), filter)
	if err != nil {
		fail(c, err, "failed to fetch requests")
		return
	}
	c.JSON(http.StatusOK, requests)
}

// requestFilter parses the shared list query. It writes the 400 itself.
func requestFilter(c *gin.Context) (repository.RequestFilter, bool) {
	filter := repository.RequestFilter{
		Limit:    defaultListLimit,
		Location: c.Query("location"),
	}

	if s := c.Query("status"); s != "" {
		status := models.RequestStatus(strings.ToLower(s))
		if !status.Valid() {
			badRequest(c, "invalid status: "+s)
			return filter, false
		}
		filter.Status = &status
	}
	if u := c.Query("min_urgency"); u != "" {
		level, ok := models.ParseUrgencyLevel(strings.ToUpper(u))
		if !ok {
			badRequest(c, "invalid urgency level: "+u)
			return filter, false
		}
		filter.MinUrgency = &level
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}
	return filter, true
}

func (h *Handler) getRequest(c *gin.Context) {
	req, err := h.store.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "failed to fetch request")
		return
	}
	c.JSON(http.StatusOK, req)
}

type statusInput struct {
	Status     models.RequestStatus `json:"status" binding:"required"`
	AssignedTo string               `json:"assigned_to"`
	Notes      string               `json:"notes"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var in statusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !in.Status.Valid() {
		badRequest(c, "invalid status: "+string(in.Status))
		return
	}

	req, err := h.store.UpdateStatus(c.Request.Context(), c.Param("id"), models.StatusUpdate{
		Status:     in.Status,
		AssignedTo: in.AssignedTo,
		Notes:      in.Notes,
		At:         time.Now(),
	})
	if err != nil {
		fail(c, err, "failed to update request")
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.store.Statistics(c.Request.Context())
	if err != nil {
		fail(c, err, "failed to compute statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) requestsMap(c *gin.Context) {
	filter, ok := requestFilter(c)
	if !ok {
		return
	}
	filter.Limit = maxListLimit

	requests, err := h.store.ListRequests(c.Request.Context(), filter)
	if err != nil {
		fail(c, err, "failed to fetch requests")
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(requests, h.index))
}
