package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/ocean-sentinel/internal/models"
)

type detectionRow struct {
	ID           string  `db:"id"`
	LocationID   string  `db:"location_id"`
	LocationName string  `db:"location_name"`
	RiskLevel    string  `db:"risk_level"`
	RiskRank     int     `db:"risk_rank"`
	AnomalyLevel string  `db:"anomaly_level"`
	Confidence   float64 `db:"confidence_score"`
	RiskScore    float64 `db:"risk_score"`
	Latitude     float64 `db:"latitude"`
	Longitude    float64 `db:"longitude"`
	Snapshot     []byte  `db:"detection_json"`
	Timestamp    int64   `db:"timestamp"`
}

func toRow(d *models.Detection) detectionRow {
	return detectionRow{
		ID:           d.ID,
		LocationID:   d.LocationID,
		LocationName: d.LocationName,
		RiskLevel:    string(d.RiskLevel),
		RiskRank:     d.RiskLevel.Rank(),
		AnomalyLevel: string(d.AnomalyLevel),
		Confidence:   d.Confidence,
		RiskScore:    d.RiskScore,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		Snapshot:     d.Snapshot,
		Timestamp:    d.Timestamp.UnixMilli(),
	}
}

func (r detectionRow) model() models.Detection {
	return models.Detection{
		ID:           r.ID,
		LocationID:   r.LocationID,
		LocationName: r.LocationName,
		RiskLevel:    models.RiskLevel(r.RiskLevel),
		AnomalyLevel: models.AnomalyLevel(r.AnomalyLevel),
		Confidence:   r.Confidence,
		RiskScore:    r.RiskScore,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Snapshot:     r.Snapshot,
		Timestamp:    time.UnixMilli(r.Timestamp).UTC(),
	}
}

const detectionColumns = `id, location_id, location_name, risk_level, risk_rank, anomaly_level,
	confidence_score, risk_score, latitude, longitude, detection_json, timestamp`

func (s *DB) Add(ctx context.Context, d *models.Detection) error {
	query := `INSERT INTO detections (` + detectionColumns + `) VALUES (
		:id, :location_id, :location_name, :risk_level, :risk_rank, :anomaly_level,
		:confidence_score, :risk_score, :latitude, :longitude, :detection_json, :timestamp)`

	if _, err := s.db.NamedExecContext(ctx, query, toRow(d)); err != nil {
		return fmt.Errorf("error inserting detection %s: %w", d.ID, err)
	}
	return nil
}

func (s *DB) GetByID(ctx context.Context, id string) (*models.Detection, error) {
	query := s.db.Rebind(`SELECT ` + detectionColumns + ` FROM detections WHERE id = ?`)

	var row detectionRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting detection %s: %w", id, err)
	}
	d := row.model()
	return &d, nil
}

func (s *DB) History(ctx context.Context, locationID string, since time.Time) ([]models.HistoryEntry, error) {
	query := s.db.Rebind(`
		SELECT anomaly_level, timestamp FROM detections
		WHERE location_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC`)

	var rows []struct {
		AnomalyLevel string `db:"anomaly_level"`
		Timestamp    int64  `db:"timestamp"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, locationID, since.UnixMilli()); err != nil {
		return nil, fmt.Errorf("error querying history for %s: %w", locationID, err)
	}

	out := make([]models.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = models.HistoryEntry{
			AnomalyLevel: models.AnomalyLevel(r.AnomalyLevel),
			Timestamp:    time.UnixMilli(r.Timestamp).UTC(),
		}
	}
	return out, nil
}

func (s *DB) ListDetections(ctx context.Context, opts Filter) ([]models.Detection, error) {
	var (
		where []string
		args  []any
	)
	if opts.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, opts.Since.UnixMilli())
	}
	if opts.LocationID != nil {
		where = append(where, "location_id = ?")
		args = append(args, *opts.LocationID)
	}
	if opts.MinRiskLevel != nil {
		where = append(where, "risk_rank >= ?")
		args = append(args, opts.MinRiskLevel.Rank())
	}
	if opts.AnomalyLevel != nil {
		where = append(where, "anomaly_level = ?")
		args = append(args, string(*opts.AnomalyLevel))
	}

	query := `SELECT ` + detectionColumns + ` FROM detections`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	var rows []detectionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error listing detections: %w", err)
	}

	out := make([]models.Detection, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *DB) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		RiskBreakdown:    make(map[models.RiskLevel]int),
		AnomalyBreakdown: make(map[models.AnomalyLevel]int),
	}

	type bucket struct {
		Level string `db:"level"`
		N     int    `db:"n"`
	}

	var risk []bucket
	if err := s.db.SelectContext(ctx, &risk,
		`SELECT risk_level AS level, COUNT(*) AS n FROM detections GROUP BY risk_level`); err != nil {
		return nil, fmt.Errorf("error counting risk levels: %w", err)
	}
	for _, b := range risk {
		stats.RiskBreakdown[models.RiskLevel(b.Level)] = b.N
		stats.TotalDetections += b.N
	}

	var anomaly []bucket
	if err := s.db.SelectContext(ctx, &anomaly,
		`SELECT anomaly_level AS level, COUNT(*) AS n FROM detections GROUP BY anomaly_level`); err != nil {
		return nil, fmt.Errorf("error counting anomaly levels: %w", err)
	}
	for _, b := range anomaly {
		stats.AnomalyBreakdown[models.AnomalyLevel(b.Level)] = b.N
	}

	return stats, nil
}
