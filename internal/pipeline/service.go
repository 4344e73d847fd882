package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mr1hm/ocean-sentinel/internal/imagery"
	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/repository"
	"github.com/mr1hm/ocean-sentinel/internal/worker"
)

var ErrLocationNotFound = errors.New("location not found")

// ImagesMissingError reports catalog image files that are not on disk.
type ImagesMissingError struct {
	LocationID string
	BeforePath string
	AfterPath  string
}

func (e *ImagesMissingError) Error() string {
	return fmt.Sprintf("satellite images not found for %s", e.LocationID)
}

type Catalog interface {
	Location(id string) (*models.Location, bool)
	IDs() []string
}

// Publisher receives detections worth alerting on.
type Publisher interface {
	Broadcast(d *models.Detection)
}

type Service struct {
	analyzer  *Analyzer
	catalog   Catalog
	repo      repository.DetectionRepository
	publisher Publisher // optional
}

func NewService(analyzer *Analyzer, catalog Catalog, repo repository.DetectionRepository, publisher Publisher) *Service {
	return &Service{
		analyzer:  analyzer,
		catalog:   catalog,
		repo:      repo,
		publisher: publisher,
	}
}

func (s *Service) Analyzer() *Analyzer { return s.analyzer }
func (s *Service) Catalog() Catalog    { return s.catalog }

// AnalyzeLocation analyzes the catalog image pair of id and records it.
func (s *Service) AnalyzeLocation(ctx context.Context, id string) (*Result, error) {
	loc, ok := s.catalog.Location(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, id)
	}

	if !exists(loc.BeforePath) || !exists(loc.AfterPath) {
		return nil, &ImagesMissingError{LocationID: id, BeforePath: loc.BeforePath, AfterPath: loc.AfterPath}
	}
	before, err := imagery.LoadFile(loc.BeforePath)
	if err != nil {
		// a broken catalog image is a server fault, not a bad request
		return nil, fmt.Errorf("failed to load satellite images for %s: %v", id, err)
	}
	after, err := imagery.LoadFile(loc.AfterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load satellite images for %s: %v", id, err)
	}

	return s.AnalyzeAndRecord(ctx, loc, before, after)
}

// AnalyzeAndRecord analyzes a pair for a known location, persists the
// detection and broadcasts it when the risk is HIGH or above.
func (s *Service) AnalyzeAndRecord(ctx context.Context, loc *models.Location, before, after *imagery.Raster) (*Result, error) {
	res, err := s.analyzer.Analyze(ctx, Request{
		LocationID: loc.ID,
		Before:     before,
		After:      after,
		BBox:       loc.BBox,
		Center:     loc.Coordinates(),
	})
	if err != nil {
		return nil, err
	}

	d, err := s.record(ctx, loc, res)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil && shouldBroadcast(d) {
		s.publisher.Broadcast(d)
	}

	slog.Info("analysis complete",
		"location", loc.ID,
		"anomaly_level", res.AnomalyLevel,
		"risk_level", res.Risk.RiskLevel,
		"risk_score", res.Risk.RiskScore,
		"detection_id", d.ID)
	return res, nil
}

func (s *Service) record(ctx context.Context, loc *models.Location, res *Result) (*models.Detection, error) {
	snapshot, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("error encoding detection snapshot: %w", err)
	}

	d := &models.Detection{
		ID:           uuid.NewString(),
		LocationID:   loc.ID,
		LocationName: loc.Name,
		RiskLevel:    res.Risk.RiskLevel,
		AnomalyLevel: res.AnomalyLevel,
		Confidence:   res.Confidence,
		RiskScore:    res.Risk.RiskScore,
		Latitude:     res.Geo.Latitude,
		Longitude:    res.Geo.Longitude,
		Snapshot:     snapshot,
		Timestamp:    res.Timestamp,
	}
	if err := s.repo.Add(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// BatchItem is the outcome for one location of a batch.
type BatchItem struct {
	LocationID string  `json:"location_id"`
	Result     *Result `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Batch analyzes ids (every catalog location when empty) on a pool of
// workers. Items keep the order of ids.
func (s *Service) Batch(ctx context.Context, ids []string, workers int) []BatchItem {
	if len(ids) == 0 {
		ids = s.catalog.IDs()
	}
	items := make([]BatchItem, len(ids))

	pool := worker.NewWorkerPool[int](workers, len(ids), func(ctx context.Context, i int) error {
		items[i].LocationID = ids[i]
		res, err := s.AnalyzeLocation(ctx, ids[i])
		if err != nil {
			items[i].Error = err.Error()
			return err
		}
		items[i].Result = res
		return nil
	})
	pool.Start(ctx)
	for i := range ids {
		pool.Submit(i)
	}
	pool.Stop()

	for i := range items {
		// jobs skipped by a cancelled context never ran
		if items[i].LocationID == "" {
			items[i].LocationID = ids[i]
			items[i].Error = context.Cause(ctx).Error()
		}
	}
	return items
}

func shouldBroadcast(d *models.Detection) bool {
	return d.RiskLevel.Rank() >= models.RiskLevelHigh.Rank()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
