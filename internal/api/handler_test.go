package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/ocean-sentinel/internal/anomaly"
	"github.com/mr1hm/ocean-sentinel/internal/config"
	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/geo"
	"github.com/mr1hm/ocean-sentinel/internal/imagery"
	"github.com/mr1hm/ocean-sentinel/internal/indicators"
	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/pipeline"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
	"github.com/mr1hm/ocean-sentinel/internal/risk"
)

// mockRepo implements repository.DetectionRepository for testing
type mockRepo struct {
	mu         sync.Mutex
	detections []models.Detection
	lastFilter repository.Filter
}

func (m *mockRepo) Add(_ context.Context, d *models.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, *d)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*models.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.detections {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) History(context.Context, string, time.Time) ([]models.HistoryEntry, error) {
	return nil, nil
}

func (m *mockRepo) ListDetections(_ context.Context, opts repository.Filter) ([]models.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = opts

	results := m.detections

	// Apply risk filter
	if opts.MinRiskLevel != nil {
		var filtered []models.Detection
		for _, d := range results {
			if d.RiskLevel.Rank() >= opts.MinRiskLevel.Rank() {
				filtered = append(filtered, d)
			}
		}
		results = filtered
	}

	// Apply limit
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

func (m *mockRepo) Stats(context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.Stats{
		TotalDetections:  len(m.detections),
		RiskBreakdown:    map[models.RiskLevel]int{},
		AnomalyBreakdown: map[models.AnomalyLevel]int{},
	}
	for _, d := range m.detections {
		stats.RiskBreakdown[d.RiskLevel]++
		stats.AnomalyBreakdown[d.AnomalyLevel]++
	}
	return stats, nil
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.detections)
}

func writePNG(t *testing.T, path string, r *imagery.Raster) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, r.ToRGBA()); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func seaRaster() *imagery.Raster {
	r := imagery.NewRaster(32, 32)
	r.Fill(20, 60, 120)
	return r
}

// testCatalog has one location with images on disk and one without.
func testCatalog(t *testing.T) *config.Catalog {
	t.Helper()
	dir := t.TempDir()
	before := filepath.Join(dir, "before.png")
	after := filepath.Join(dir, "after.png")
	writePNG(t, before, seaRaster())
	writePNG(t, after, seaRaster())

	return &config.Catalog{
		Locations: []models.Location{
			{
				ID:         "nellore",
				Name:       "Nellore Offshore Waters",
				Latitude:   14.0,
				Longitude:  80.3,
				BBox:       &models.BBox{West: 79.8, South: 13.8, East: 80.8, North: 14.2},
				BeforePath: before,
				AfterPath:  after,
			},
			{
				ID:         "offline",
				Name:       "No imagery yet",
				Latitude:   10,
				Longitude:  85,
				BeforePath: filepath.Join(dir, "missing_before.png"),
				AfterPath:  filepath.Join(dir, "missing_after.png"),
			},
		},
		Zones: geo.DefaultZones(),
	}
}

func setupTestRouter(t *testing.T, repo *mockRepo) *gin.Engine {
	t.Helper()
	catalog := testCatalog(t)
	classifier := anomaly.NewClassifier("", features.ModeBasic)
	aggregator := risk.NewAggregator(repo, catalog.Zones, time.Now)
	analyzer := pipeline.NewAnalyzer(classifier, aggregator, indicators.DefaultThresholds())
	service := pipeline.NewService(analyzer, catalog, repo, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(service, repo, 2, 10<<20, 32*32)
	handler.RegisterRoutes(router)
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["feature_mode"] != "basic" {
		t.Errorf("expected feature_mode basic, got %v", body["feature_mode"])
	}
	if body["model_status"] != "will train on first use" {
		t.Errorf("unexpected model_status %v", body["model_status"])
	}
}

func TestGetLocations(t *testing.T) {
	router := setupTestRouter(t, &mockRepo{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/locations", nil)
	router.ServeHTTP(w, req)

	body := decode(t, w)
	if body["total_locations"] != float64(2) {
		t.Errorf("expected 2 locations, got %v", body["total_locations"])
	}
	locs := body["locations"].([]any)
	first := locs[0].(map[string]any)
	if first["id"] != "nellore" {
		t.Errorf("expected nellore first, got %v", first["id"])
	}
	if _, ok := first["before_path"]; ok {
		t.Error("image paths should not be exposed")
	}
}

func TestAnalyzeLocation_UnknownLocation(t *testing.T) {
	router := setupTestRouter(t, &mockRepo{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/analyze/atlantis", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	body := decode(t, w)
	available := body["available_locations"].([]any)
	if len(available) != 2 {
		t.Errorf("expected 2 available locations, got %v", available)
	}
}

func TestAnalyzeLocation_ImagesMissing(t *testing.T) {
	router := setupTestRouter(t, &mockRepo{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/analyze/offline", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	body := decode(t, w)
	paths, ok := body["expected_paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected expected_paths in body, got %v", body)
	}
	if !strings.HasSuffix(paths["before"].(string), "missing_before.png") {
		t.Errorf("unexpected before path %v", paths["before"])
	}
}

func TestAnalyzeLocation_RecordsDetection(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/analyze/nellore", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if res.AnomalyLevel != models.AnomalyLevelLow {
		t.Errorf("identical images should be LOW, got %s", res.AnomalyLevel)
	}
	if res.Risk.RiskLevel != models.RiskLevelLow {
		t.Errorf("expected LOW risk, got %s", res.Risk.RiskLevel)
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 recorded detection, got %d", repo.count())
	}
}

func multipartBody(t *testing.T, files map[string]*imagery.Raster, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, r := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(fw, r.ToRGBA()); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeUpload_AdHoc(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	body, ct := multipartBody(t,
		map[string]*imagery.Raster{"before": seaRaster(), "after": seaRaster()},
		map[string]string{"bbox": "80.0,13.0,81.0,14.0"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var res pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	// no localized change, so the frame centre maps to the bbox centre
	if res.Geo.Latitude != 13.5 || res.Geo.Longitude != 80.5 {
		t.Errorf("expected bbox centre, got %v,%v", res.Geo.Latitude, res.Geo.Longitude)
	}
	if repo.count() != 0 {
		t.Errorf("ad hoc analysis should not be recorded, got %d", repo.count())
	}
}

func TestAnalyzeUpload_WithLocationRecords(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	body, ct := multipartBody(t,
		map[string]*imagery.Raster{"before": seaRaster(), "after": seaRaster()},
		map[string]string{"location_id": "nellore"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 recorded detection, got %d", repo.count())
	}
}

func TestAnalyzeUpload_BadInput(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]*imagery.Raster
		fields map[string]string
		want   int
	}{
		{
			name:  "missing after image",
			files: map[string]*imagery.Raster{"before": seaRaster()},
			want:  http.StatusBadRequest,
		},
		{
			name:   "malformed bbox",
			files:  map[string]*imagery.Raster{"before": seaRaster(), "after": seaRaster()},
			fields: map[string]string{"bbox": "80,13,81"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "inverted bbox",
			files:  map[string]*imagery.Raster{"before": seaRaster(), "after": seaRaster()},
			fields: map[string]string{"bbox": "81,14,80,13"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "unknown location",
			files:  map[string]*imagery.Raster{"before": seaRaster(), "after": seaRaster()},
			fields: map[string]string{"location_id": "atlantis"},
			want:   http.StatusNotFound,
		},
	}

	router := setupTestRouter(t, &mockRepo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.files, tt.fields)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/analyze", body)
			req.Header.Set("Content-Type", ct)
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAnalyzeUpload_OversizedImage(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	big := imagery.NewRaster(64, 64)
	big.Fill(20, 60, 120)
	body, ct := multipartBody(t,
		map[string]*imagery.Raster{"before": big, "after": seaRaster()},
		map[string]string{"location_id": "nellore"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if !strings.Contains(resp["error"].(string), "pixel limit") {
		t.Errorf("expected pixel limit error, got %v", resp["error"])
	}
	if repo.count() != 0 {
		t.Errorf("expected nothing recorded, got %d", repo.count())
	}
}

func TestBatchAnalyze(t *testing.T) {
	repo := &mockRepo{}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/batch-analyze", strings.NewReader(`{"locations":["nellore","offline"]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["total_analyzed"] != float64(1) {
		t.Errorf("expected 1 analyzed, got %v", body["total_analyzed"])
	}
	results := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].(map[string]any)["error"] == nil {
		t.Error("expected an error for the location without imagery")
	}
}

func TestHistory(t *testing.T) {
	repo := &mockRepo{
		detections: []models.Detection{
			{ID: "d1", LocationID: "nellore", RiskLevel: models.RiskLevelLow, Timestamp: time.Now()},
		},
	}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history/nellore", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if repo.lastFilter.LocationID == nil || *repo.lastFilter.LocationID != "nellore" {
		t.Errorf("expected location filter nellore, got %v", repo.lastFilter.LocationID)
	}
	if repo.lastFilter.Limit != defaultHistoryLimit {
		t.Errorf("expected default limit %d, got %d", defaultHistoryLimit, repo.lastFilter.Limit)
	}
	body := decode(t, w)
	if body["total_records"] != float64(1) {
		t.Errorf("expected 1 record, got %v", body["total_records"])
	}
}

func TestHistory_UnknownLocation(t *testing.T) {
	router := setupTestRouter(t, &mockRepo{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/history/atlantis", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	repo := &mockRepo{
		detections: []models.Detection{
			{ID: "d1", RiskLevel: models.RiskLevelHigh, AnomalyLevel: models.AnomalyLevelHigh},
			{ID: "d2", RiskLevel: models.RiskLevelLow, AnomalyLevel: models.AnomalyLevelLow},
		},
	}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/stats", nil)
	router.ServeHTTP(w, req)

	body := decode(t, w)
	stats := body["statistics"].(map[string]any)
	if stats["total_detections"] != float64(2) {
		t.Errorf("expected 2 detections, got %v", stats["total_detections"])
	}
}

func TestGetDetections_ReturnsGeoJSON(t *testing.T) {
	repo := &mockRepo{
		detections: []models.Detection{
			{
				ID:           "d1",
				LocationID:   "nellore",
				RiskLevel:    models.RiskLevelHigh,
				AnomalyLevel: models.AnomalyLevelHigh,
				Latitude:     14.1,
				Longitude:    80.4,
				Timestamp:    time.Now(),
			},
		},
	}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/detections/geojson", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	// Check content type
	contentType := w.Header().Get("Content-Type")
	if contentType != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", contentType)
	}

	var fc FeatureCollection
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected type FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	coords := fc.Features[0].Geometry.Coordinates
	if coords[0] != 80.4 || coords[1] != 14.1 {
		t.Errorf("expected [lon, lat] = [80.4, 14.1], got %v", coords)
	}
	if fc.Features[0].Properties["risk_level"] != "high" {
		t.Errorf("expected risk_level high, got %v", fc.Features[0].Properties["risk_level"])
	}
}

func TestGetDetections_Filters(t *testing.T) {
	repo := &mockRepo{
		detections: []models.Detection{
			{ID: "d1", RiskLevel: models.RiskLevelLow, Timestamp: time.Now()},
			{ID: "d2", RiskLevel: models.RiskLevelHigh, Timestamp: time.Now()},
			{ID: "d3", RiskLevel: models.RiskLevelCritical, Timestamp: time.Now()},
		},
	}
	router := setupTestRouter(t, repo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/detections/geojson?min_risk_level=high&location=nellore&since=2026-01-01&limit=10", nil)
	router.ServeHTTP(w, req)

	var fc FeatureCollection
	json.Unmarshal(w.Body.Bytes(), &fc)

	if len(fc.Features) != 2 {
		t.Errorf("expected 2 detections at HIGH or above, got %d", len(fc.Features))
	}
	f := repo.lastFilter
	if f.Limit != 10 {
		t.Errorf("expected limit 10, got %d", f.Limit)
	}
	if f.LocationID == nil || *f.LocationID != "nellore" {
		t.Errorf("expected location filter, got %v", f.LocationID)
	}
	if f.Since == nil || !f.Since.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected since 2026-01-01, got %v", f.Since)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK {
		t.Errorf("first request should pass, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("second request should be limited, got %d", codes[1])
	}
}
