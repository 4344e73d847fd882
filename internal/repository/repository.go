package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/ocean-sentinel/internal/models"
)

var ErrNotFound = errors.New("detection not found")

type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time
	LocationID   *string
	MinRiskLevel *models.RiskLevel // >= this level (e.g., HIGH includes HIGH and CRITICAL)
	AnomalyLevel *models.AnomalyLevel
}

type DetectionRepository interface {
	Add(ctx context.Context, d *models.Detection) error
	GetByID(ctx context.Context, id string) (*models.Detection, error)
	History(ctx context.Context, locationID string, since time.Time) ([]models.HistoryEntry, error)
	ListDetections(ctx context.Context, opts Filter) ([]models.Detection, error)
	Stats(ctx context.Context) (*models.Stats, error)
}
