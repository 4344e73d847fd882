package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/ocean-sentinel/internal/imagery"
	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/pipeline"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxLimit            = 500
)

type Handler struct {
	service   *pipeline.Service
	repo      repository.DetectionRepository
	workers   int
	maxUpload int64
	maxPixels int
}

func NewHandler(service *pipeline.Service, repo repository.DetectionRepository, workers int, maxUpload int64, maxPixels int) *Handler {
	return &Handler{
		service:   service,
		repo:      repo,
		workers:   workers,
		maxUpload: maxUpload,
		maxPixels: maxPixels,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/locations", h.getLocations)
	api.GET("/analyze/:location", h.analyzeLocation)
	api.POST("/analyze", h.analyzeUpload)
	api.POST("/batch-analyze", h.batchAnalyze)
	api.GET("/history", h.getHistory)
	api.GET("/history/:location", h.getHistory)
	api.GET("/stats", h.getStats)
	api.GET("/detections/geojson", h.getDetectionsGeoJSON)
}

func (h *Handler) health(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	modelStatus := "will train on first use"
	if path := h.service.Analyzer().ModelPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			modelStatus = "loaded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"database":         "connected",
		"total_detections": stats.TotalDetections,
		"model_status":     modelStatus,
		"feature_mode":     h.service.Analyzer().Mode(),
		"timestamp":        time.Now().UTC(),
	})
}

func (h *Handler) getLocations(c *gin.Context) {
	catalog := h.service.Catalog()
	locations := make([]*models.Location, 0)
	for _, id := range catalog.IDs() {
		loc, _ := catalog.Location(id)
		locations = append(locations, loc)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_locations": len(locations),
		"locations":       locations,
	})
}

func (h *Handler) analyzeLocation(c *gin.Context) {
	res, err := h.service.AnalyzeLocation(c.Request.Context(), c.Param("location"))
	if err != nil {
		h.analysisError(c, c.Param("location"), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// analyzeUpload scores an uploaded pair. With a catalog location_id the
// result is recorded like a scheduled analysis; otherwise it is ad hoc.
func (h *Handler) analyzeUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	before, err := h.formImage(c, "before")
	if err != nil {
		badRequest(c, err)
		return
	}
	after, err := h.formImage(c, "after")
	if err != nil {
		badRequest(c, err)
		return
	}

	req := pipeline.Request{Before: before, After: after}
	if s := c.PostForm("bbox"); s != "" {
		b, err := parseBBox(s)
		if err != nil {
			badRequest(c, err)
			return
		}
		req.BBox = &b
		req.Center = b.Center()
	}
	if lat, lon := c.PostForm("lat"), c.PostForm("lon"); lat != "" && lon != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		lo, errLon := strconv.ParseFloat(lon, 64)
		if errLat != nil || errLon != nil {
			badRequest(c, errors.New("lat and lon must be numbers"))
			return
		}
		req.Center = models.Coordinates{Latitude: la, Longitude: lo}
	}

	ctx := c.Request.Context()
	if id := c.PostForm("location_id"); id != "" {
		loc, ok := h.service.Catalog().Location(id)
		if !ok {
			h.analysisError(c, id, fmt.Errorf("%w: %s", pipeline.ErrLocationNotFound, id))
			return
		}
		if req.BBox != nil {
			override := *loc
			override.BBox = req.BBox
			override.Latitude, override.Longitude = req.Center.Latitude, req.Center.Longitude
			loc = &override
		}
		res, err := h.service.AnalyzeAndRecord(ctx, loc, before, after)
		if err != nil {
			h.analysisError(c, id, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	res, err := h.service.Analyzer().Analyze(ctx, req)
	if err != nil {
		h.analysisError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type batchRequest struct {
	Locations []string `json:"locations"`
}

func (h *Handler) batchAnalyze(c *gin.Context) {
	var req batchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, fmt.Errorf("invalid batch request: %w", err))
			return
		}
	}

	items := h.service.Batch(c.Request.Context(), req.Locations, h.workers)
	var analyzed int
	for _, it := range items {
		if it.Error == "" {
			analyzed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_analysis": true,
		"total_analyzed": analyzed,
		"results":        items,
		"timestamp":      time.Now().UTC(),
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	filter := repository.Filter{
		Limit: defaultHistoryLimit,
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			filter.Limit = lim
		}
	}

	location := c.Param("location")
	if location != "" {
		if _, ok := h.service.Catalog().Location(location); !ok {
			h.locationNotFound(c, location)
			return
		}
		filter.LocationID = &location
	}

	detections, err := h.repo.ListDetections(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch history",
		})
		return
	}

	resp := gin.H{
		"total_records": len(detections),
		"history":       detections,
	}
	if location != "" {
		resp["location"] = location
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch statistics",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"statistics": stats,
		"timestamp":  time.Now().UTC(),
	})
}

func (h *Handler) getDetectionsGeoJSON(c *gin.Context) {
	filter := repository.Filter{
		Limit: 100, // Default to 100 detections if limit param not supplied
	}

	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			filter.Limit = lim
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if loc := c.Query("location"); loc != "" {
		filter.LocationID = &loc
	}
	if mrl := c.Query("min_risk_level"); mrl != "" {
		if level, ok := models.ParseRiskLevel(strings.ToUpper(mrl)); ok {
			filter.MinRiskLevel = &level
		}
	}
	if al := c.Query("anomaly_level"); al != "" {
		level := models.AnomalyLevel(strings.ToUpper(al))
		filter.AnomalyLevel = &level
	}

	detections, err := h.repo.ListDetections(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch detections",
		})
		return
	}

	fc := toGeoJSON(detections)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) analysisError(c *gin.Context, location string, err error) {
	var missing *pipeline.ImagesMissingError
	switch {
	case errors.Is(err, pipeline.ErrLocationNotFound):
		h.locationNotFound(c, location)
	case errors.As(err, &missing):
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "Satellite images not found for this location",
			"location": missing.LocationID,
			"expected_paths": gin.H{
				"before": missing.BeforePath,
				"after":  missing.AfterPath,
			},
		})
	case imagery.IsInputError(err):
		badRequest(c, err)
	default:
		slog.Error("analysis failed", "location", location, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  fmt.Sprintf("Internal server error: %v", err),
			"status": "failed",
		})
	}
}

func (h *Handler) locationNotFound(c *gin.Context, location string) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":               fmt.Sprintf("Location '%s' not found", location),
		"available_locations": h.service.Catalog().IDs(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  err.Error(),
		"status": "failed",
	})
}

func (h *Handler) formImage(c *gin.Context, field string) (*imagery.Raster, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, &imagery.InputError{Reason: fmt.Sprintf("%s image is required", field)}
	}
	return h.openUpload(fh)
}

func (h *Handler) openUpload(fh *multipart.FileHeader) (*imagery.Raster, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &imagery.InputError{Reason: fmt.Sprintf("open %s: %v", fh.Filename, err)}
	}
	defer f.Close()
	return imagery.DecodeLimited(f, h.maxPixels)
}

// parseBBox reads "west,south,east,north".
func parseBBox(s string) (models.BBox, error) {
	parts := strings.Split(s, ",")
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.BBox{}, fmt.Errorf("invalid bbox component %q", p)
		}
		v[i] = f
	}
	b, err := models.BBoxFromSlice(v)
	if err != nil {
		return models.BBox{}, fmt.Errorf("invalid bbox: %w", err)
	}
	return b, nil
}
