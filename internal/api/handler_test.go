package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-relief-triage/internal/broadcast"
	"github.com/mr1hm/go-relief-triage/internal/config"
	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/intake"
	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/models"
	"github.com/mr1hm/go-relief-triage/internal/routing"
)

var testTriage = config.TriageConfig{
	Timezone:         "UTC",
	DonorRadiusKm:    matching.DefaultDonorRadiusKm,
	SafeZoneRadiusKm: matching.DefaultSafeZoneRadiusKm,
	FamilyRadiusKm:   matching.DefaultFamilyRadiusKm,
}

func setupTestRouter(store *mockStore, b *broadcast.Broadcaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(store, &fakeIntake{store: store}, b, geo.Default(), testTriage)
	handler.RegisterRoutes(router)
	return router
}

func do(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func stored(id string, score float64, level models.UrgencyLevel, location string, needs ...string) models.Request {
	return models.Request{
		ID:       id,
		Message:  "help at " + location,
		Analysis: models.AnalysisRecord{Location: location, NeedsList: needs},
		Priority: models.PriorityRecord{TotalScore: score, UrgencyLevel: level},
		Status:   models.StatusPending,
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(&mockStore{}, nil)

	w := do(router, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestCreateRequest_ScoresAndStores(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store, nil)

	w := do(router, "POST", "/api/requests", map[string]any{
		"message": "Baby trapped on roof, water rising fast",
		"analysis": map[string]any{
			"need_type":              "rescue",
			"location":               "Velachery",
			"urgency_base_score":     9,
			"vulnerable_groups":      []string{"baby"},
			"has_immediate_danger":   true,
			"estimated_people_count": 2,
		},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var req models.Request
	if err := json.Unmarshal(w.Body.Bytes(), &req); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if req.Priority.UrgencyLevel != models.UrgencyCritical || req.Priority.TotalScore != 84 {
		t.Errorf("expected CRITICAL 84, got %s %v", req.Priority.UrgencyLevel, req.Priority.TotalScore)
	}
	if len(store.requests) != 1 {
		t.Errorf("expected 1 stored request, got %d", len(store.requests))
	}
}

func TestCreateRequest_DuplicateIDReturnsStored(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store, nil)

	body := map[string]any{"id": "msg_7", "message": "need food in Porur"}
	if w := do(router, "POST", "/api/requests", body); w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	w := do(router, "POST", "/api/requests", map[string]any{"id": "msg_7", "message": "need food again"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for a repeated id, got %d", w.Code)
	}

	var req models.Request
	json.Unmarshal(w.Body.Bytes(), &req)
	if req.Message != "need food in Porur" {
		t.Errorf("expected the stored request, got %q", req.Message)
	}
	if len(store.requests) != 1 {
		t.Errorf("expected 1 stored request, got %d", len(store.requests))
	}
}

func TestCreateRequest_MissingMessage(t *testing.T) {
	router := setupTestRouter(&mockStore{}, nil)

	w := do(router, "POST", "/api/requests", map[string]any{"analysis": map[string]any{}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestBulkRequests(t *testing.T) {
	store := &mockStore{}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	in := &fakeIntake{store: store}
	NewHandler(store, in, nil, geo.Default(), testTriage).RegisterRoutes(router)

	w := do(router, "POST", "/api/requests/bulk", []map[string]any{
		{"message": "need water in Adyar"},
		{"message": "food for 20 people in Porur"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(in.batches) != 1 || len(in.batches[0]) != 2 {
		t.Errorf("expected one batch of 2, got %v", in.batches)
	}

	w = do(router, "POST", "/api/requests/bulk", []map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty batch, got %d", w.Code)
	}
}

func TestListRequests_Filters(t *testing.T) {
	store := &mockStore{requests: []models.Request{
		stored("low", 30, models.UrgencyLow, "Adyar"),
		stored("critical", 88, models.UrgencyCritical, "Velachery"),
		stored("high", 65, models.UrgencyHigh, "Tambaram"),
	}}
	router := setupTestRouter(store, nil)

	w := do(router, "GET", "/api/requests?min_urgency=high", nil)
	var got []models.Request
	json.Unmarshal(w.Body.Bytes(), &got)
	if len(got) != 2 || got[0].ID != "critical" {
		t.Errorf("expected [critical high], got %v", got)
	}

	w = do(router, "GET", "/api/requests?location=adyar", nil)
	json.Unmarshal(w.Body.Bytes(), &got)
	if len(got) != 1 || got[0].ID != "low" {
		t.Errorf("expected [low], got %v", got)
	}

	w = do(router, "GET", "/api/requests?status=closed", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown status, got %d", w.Code)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	router := setupTestRouter(&mockStore{}, nil)

	w := do(router, "GET", "/api/requests/missing", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := &mockStore{requests: []models.Request{stored("r1", 88, models.UrgencyCritical, "Velachery")}}
	router := setupTestRouter(store, nil)

	w := do(router, "POST", "/api/requests/r1/status", map[string]string{"status": "assigned", "assigned_to": "Team Alpha"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got models.Request
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != models.StatusAssigned || got.AssignedTo != "Team Alpha" {
		t.Errorf("unexpected request %+v", got)
	}

	w = do(router, "POST", "/api/requests/r1/status", map[string]string{"status": "pending"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409 for backwards move, got %d", w.Code)
	}

	w = do(router, "POST", "/api/requests/r1/status", map[string]string{"status": "done"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown status, got %d", w.Code)
	}

	w = do(router, "POST", "/api/requests/missing/status", map[string]string{"status": "resolved"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestRequestsMap_ReturnsGeoJSON(t *testing.T) {
	store := &mockStore{requests: []models.Request{
		stored("named", 88, models.UrgencyCritical, "Velachery"),
		stored("gps", 70, models.UrgencyHigh, "Camp 4 (13.0, 80.2)"),
		stored("unknown", 50, models.UrgencyMedium, models.UnknownLocation),
	}}
	router := setupTestRouter(store, nil)

	w := do(router, "GET", "/api/requests/map", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", ct)
	}

	var fc FeatureCollection
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected type FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	gps := fc.Features[1]
	if gps.Geometry.Coordinates[0] != 80.2 || gps.Geometry.Coordinates[1] != 13.0 {
		t.Errorf("expected [lon lat] = [80.2 13.0], got %v", gps.Geometry.Coordinates)
	}
	if gps.Properties["location"] != "Camp 4" {
		t.Errorf("expected GPS suffix stripped, got %v", gps.Properties["location"])
	}
}

func TestStatistics(t *testing.T) {
	store := &mockStore{requests: []models.Request{
		stored("a", 88, models.UrgencyCritical, "Velachery"),
		stored("b", 65, models.UrgencyHigh, "Velachery"),
	}}
	router := setupTestRouter(store, nil)

	w := do(router, "GET", "/api/statistics", nil)

	var stats map[string]any
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats["total_requests"] != 2.0 {
		t.Errorf("expected 2 total requests, got %v", stats["total_requests"])
	}
}

func TestDonations_CreateNearbyCommit(t *testing.T) {
	store := &mockStore{requests: []models.Request{stored("r1", 88, models.UrgencyCritical, "Tambaram")}}
	router := setupTestRouter(store, nil)

	w := do(router, "POST", "/api/donations", map[string]any{
		"donor_name": "Ravi",
		"location":   "Chrompet",
		"resources":  []string{"Food packets"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var d models.Donation
	json.Unmarshal(w.Body.Bytes(), &d)
	if d.ID == "" || d.Status != models.DonationAvailable {
		t.Errorf("unexpected donation %+v", d)
	}

	w = do(router, "POST", "/api/donations", map[string]any{"location": "Chrompet"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without resources, got %d", w.Code)
	}

	w = do(router, "GET", "/api/donations/nearby?location=Tambaram&resource=food", nil)
	var matches []matching.DonorMatch
	json.Unmarshal(w.Body.Bytes(), &matches)
	if len(matches) != 1 || matches[0].ID != d.ID {
		t.Fatalf("expected the Chrompet donation, got %v", matches)
	}
	if matches[0].EstimatedTime != "17 mins" {
		t.Errorf("expected 17 mins, got %s", matches[0].EstimatedTime)
	}

	w = do(router, "GET", "/api/donations/nearby?location=Tambaram&resource=food&max_km=2", nil)
	json.Unmarshal(w.Body.Bytes(), &matches)
	if len(matches) != 0 {
		t.Errorf("expected no donors within 2 km, got %d", len(matches))
	}

	w = do(router, "GET", "/api/donations/nearby?location=Tambaram&resource=food&max_km=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for negative radius, got %d", w.Code)
	}

	w = do(router, "POST", "/api/donations/"+d.ID+"/commit", map[string]string{"request_id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown request, got %d", w.Code)
	}

	w = do(router, "POST", "/api/donations/"+d.ID+"/commit", map[string]string{"request_id": "r1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(router, "POST", "/api/donations/"+d.ID+"/commit", map[string]string{"request_id": "r1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409 for second commit, got %d", w.Code)
	}

	w = do(router, "GET", "/api/donations?status=available", nil)
	var available []models.Donation
	json.Unmarshal(w.Body.Bytes(), &available)
	if len(available) != 0 {
		t.Errorf("expected no available donations, got %d", len(available))
	}
}

func TestNearbySafeZones(t *testing.T) {
	store := &mockStore{zones: matching.DefaultSafeZones()}
	router := setupTestRouter(store, nil)

	w := do(router, "GET", "/api/safe-zones/nearby?location=Tambaram", nil)

	var zones []matching.ZoneMatch
	json.Unmarshal(w.Body.Bytes(), &zones)
	want := []string{"Porur", "Adyar", "T Nagar"}
	if len(zones) != len(want) {
		t.Fatalf("expected %d zones, got %d", len(want), len(zones))
	}
	for i, loc := range want {
		if zones[i].Location != loc {
			t.Errorf("position %d: expected %s, got %s", i, loc, zones[i].Location)
		}
	}

	w = do(router, "GET", "/api/safe-zones/nearby", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without location, got %d", w.Code)
	}
}

func TestNeeds_SummaryAndMatches(t *testing.T) {
	store := &mockStore{donations: []models.Donation{
		{ID: "porur", DonorName: "Porur Trust", Location: "Porur", Resources: []string{"food"}, Status: models.DonationAvailable},
	}}
	router := setupTestRouter(store, nil)

	for _, n := range []map[string]string{
		{"location": "Tambaram", "need_type": "food", "quantity": "50 kg rice", "urgency": "high"},
		{"location": "Tambaram", "need_type": "medical", "urgency": "CRITICAL"},
		{"location": "Velachery", "need_type": "water"},
	} {
		if w := do(router, "POST", "/api/needs", n); w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := do(router, "POST", "/api/needs", map[string]string{"location": "Adyar", "need_type": "food", "urgency": "extreme"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown urgency, got %d", w.Code)
	}

	w = do(router, "GET", "/api/needs/summary", nil)
	var summary []matching.LocationNeeds
	json.Unmarshal(w.Body.Bytes(), &summary)
	if len(summary) != 2 || summary[0].Location != "Tambaram" || summary[0].UrgencyLevel != models.UrgencyCritical {
		t.Errorf("unexpected summary %+v", summary)
	}

	w = do(router, "GET", "/api/needs/matches/Tambaram", nil)
	var resp struct {
		Location string                 `json:"location"`
		Matches  []matching.NeedMatches `json:"matches"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Matches) != 2 {
		t.Fatalf("expected 2 need matches, got %d", len(resp.Matches))
	}
	if resp.Matches[0].TotalAvailable != 1 || resp.Matches[1].TotalAvailable != 0 {
		t.Errorf("expected food matched by Porur only, got %+v", resp.Matches)
	}
}

func TestRoutes_PrefersCoverage(t *testing.T) {
	resolved := stored("done", 99, models.UrgencyCritical, "Camp (13.00, 80.20)", "food")
	resolved.Status = models.StatusResolved

	store := &mockStore{
		requests: []models.Request{
			stored("r1", 85, models.UrgencyCritical, "Relief camp (13.00, 80.20)", "food", "water"),
			stored("medium", 50, models.UrgencyMedium, "Camp (13.00, 80.20)", "food"),
			resolved,
		},
		donations: []models.Donation{
			{ID: "A", Location: "Depot A (13.018, 80.20)", Resources: []string{"food"}, Status: models.DonationAvailable},
			{ID: "B", Location: "Depot B (13.072, 80.20)", Resources: []string{"food", "water"}, Status: models.DonationAvailable},
		},
	}
	router := setupTestRouter(store, nil)

	w := do(router, "GET", "/api/routes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var routes []routing.Route
	json.Unmarshal(w.Body.Bytes(), &routes)
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	if routes[0].RequestID != "r1" || routes[0].DonationID != "B" || routes[0].MatchQuality != routing.QualityPerfect {
		t.Errorf("unexpected route %+v", routes[0])
	}
	if routes[0].DonorName != "Anonymous" {
		t.Errorf("expected Anonymous donor, got %s", routes[0].DonorName)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(0.001, 1))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	if w := do(router, "GET", "/ping", nil); w.Code != http.StatusOK {
		t.Errorf("expected first request to pass, got %d", w.Code)
	}
	if w := do(router, "GET", "/ping", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
}

// streamRecorder adds the CloseNotifier that gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestStreamRequests(t *testing.T) {
	b := broadcast.NewBroadcaster()
	router := setupTestRouter(&mockStore{}, b)

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/api/requests/stream", nil)

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.After(time.Second)
	for b.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("stream never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	urgent := stored("sse_1", 88, models.UrgencyCritical, "Velachery")
	b.Broadcast(&urgent)
	// closing delivers the buffered request first, then ends the stream
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after broadcaster closed")
	}

	body := w.Body.String()
	if !strings.Contains(body, "event:request") || !strings.Contains(body, `"id":"sse_1"`) {
		t.Errorf("unexpected stream body %q", body)
	}
}

func TestStreamRequests_Unavailable(t *testing.T) {
	router := setupTestRouter(&mockStore{}, nil)

	w := do(router, "GET", "/api/requests/stream", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

var _ Intake = (*intake.Manager)(nil)

func TestFamilySafety(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store, nil)

	for _, r := range []map[string]any{
		{"name": "Rescue lead", "family": map[string]any{"location": "Perungudi", "members": []string{"Wife"}}},
		{"name": "Medic", "family": map[string]any{"location": "Tambaram", "status": "safe"}},
		{"name": "Driver", "family": map[string]any{"location": "Velachery", "status": "needs_help"}},
	} {
		if w := do(router, "POST", "/api/responders", r); w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	if w := do(router, "POST", "/api/responders", map[string]any{"name": "No family"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without a family location, got %d", w.Code)
	}
	bad := map[string]any{"name": "Odd", "family": map[string]any{"location": "Adyar", "status": "lost"}}
	if w := do(router, "POST", "/api/responders", bad); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for an invalid status, got %d", w.Code)
	}

	w := do(router, "POST", "/api/family-safety/check", map[string]any{"location": "Velachery"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var check struct {
		Count    int                    `json:"count"`
		Families []matching.FamilyAlert `json:"families_at_risk"`
	}
	json.Unmarshal(w.Body.Bytes(), &check)
	// Tambaram is 14 km away, outside the default radius
	if check.Count != 2 || len(check.Families) != 2 {
		t.Fatalf("expected 2 families at risk, got %d", check.Count)
	}
	if check.Families[0].FamilyLocation != "Velachery" || check.Families[0].AlertPriority != models.UrgencyCritical {
		t.Errorf("expected the Velachery family first as CRITICAL, got %+v", check.Families[0])
	}
	if check.Families[1].AlertPriority != models.UrgencyMedium {
		t.Errorf("expected MEDIUM at 2.99 km, got %s", check.Families[1].AlertPriority)
	}

	w = do(router, "POST", "/api/family-safety/check", map[string]any{"location": "Velachery", "radius_km": 20})
	json.Unmarshal(w.Body.Bytes(), &check)
	if check.Count != 3 {
		t.Errorf("expected 3 families within 20 km, got %d", check.Count)
	}

	id := store.responders[0].ID
	w = do(router, "POST", "/api/family-safety/"+id+"/status", map[string]any{"status": "SAFE", "notes": "reached by phone"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var updated models.Responder
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Family.Status != models.FamilySafe || updated.Family.LastContact == nil {
		t.Errorf("unexpected family after update %+v", updated.Family)
	}

	if w := do(router, "POST", "/api/family-safety/"+id+"/status", map[string]any{"status": "fine"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if w := do(router, "POST", "/api/family-safety/missing/status", map[string]any{"status": "safe"}); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}

	w = do(router, "GET", "/api/family-safety", nil)
	var all struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &all)
	if all.Count != 3 {
		t.Errorf("expected 3 families, got %d", all.Count)
	}
}
