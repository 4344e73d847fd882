package models

import (
	"encoding/json"
	"fmt"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BBox is a geographic bounding box in decimal degrees.
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// BBoxFromSlice builds a BBox from the [west, south, east, north] wire form.
func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("bbox must have 4 components, got %d", len(v))
	}
	b := BBox{West: v[0], South: v[1], East: v[2], North: v[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

func (b BBox) Validate() error {
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]")
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]")
	}
	if b.South >= b.North || b.West >= b.East {
		return fmt.Errorf("south must be < north and west must be < east")
	}
	return nil
}

func (b BBox) Slice() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

// MarshalJSON writes the [west, south, east, north] form.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := BBoxFromSlice(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b BBox) Center() Coordinates {
	return Coordinates{
		Latitude:  (b.South + b.North) / 2,
		Longitude: (b.West + b.East) / 2,
	}
}

// Location is a monitored area and the image pair that describes it.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	BBox        *BBox   `json:"bbox,omitempty"`
	BeforePath  string  `json:"-"`
	AfterPath   string  `json:"-"`
}

func (l *Location) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

// SensitiveZone is a fixed area with elevated ecological or economic relevance.
type SensitiveZone struct {
	Name      string  `json:"name" yaml:"name" toml:"name"`
	Type      string  `json:"type" yaml:"type" toml:"type"`
	Latitude  float64 `json:"lat" yaml:"lat" toml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon" toml:"lon"`
	RadiusKm  float64 `json:"radius_km" yaml:"radius_km" toml:"radius_km"`
}
