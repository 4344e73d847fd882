// Package geo maps frame positions to coordinates and resolves proximity to
// sensitive zones.
package geo

import (
	"math"
	"sort"

	"github.com/mr1hm/ocean-sentinel/internal/models"
)

const earthRadiusKm = 6371

// Point is an anomaly position on the ground.
type Point struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	DistanceFromCenterKm float64 `json:"distance_from_center_km"`
	FromBBox             bool    `json:"from_bbox"`
}

// Map interpolates normalized frame coordinates into bbox. y=0 is the north
// edge. Flat-earth interpolation is fine for boxes of a degree or so.
func Map(bbox models.BBox, x, y float64) models.Coordinates {
	return models.Coordinates{
		Latitude:  bbox.North - (bbox.North-bbox.South)*y,
		Longitude: bbox.West + (bbox.East-bbox.West)*x,
	}
}

// Locate maps (x, y) when a bbox is known and otherwise falls back to the
// nominal centre of the area.
func Locate(bbox *models.BBox, center models.Coordinates, x, y float64) Point {
	if bbox == nil {
		return Point{Latitude: center.Latitude, Longitude: center.Longitude}
	}
	c := Map(*bbox, x, y)
	return Point{
		Latitude:             c.Latitude,
		Longitude:            c.Longitude,
		DistanceFromCenterKm: Haversine(center.Latitude, center.Longitude, c.Latitude, c.Longitude),
		FromBBox:             true,
	}
}

// Haversine is the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

type NearbyZone struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	DistanceKm float64 `json:"distance_km"`
}

// Proximity describes where a point sits relative to the zone set.
type Proximity struct {
	NearbyZones []NearbyZone // zones whose radius contains the point, nearest first
	ClosestKm   float64      // distance to the nearest zone; +Inf with no zones
	Closest     string
}

// VeryCloseKm is the distance under which a zone escalates risk regardless of
// its configured radius.
const VeryCloseKm = 5.0

func (p Proximity) NearSensitive() bool { return len(p.NearbyZones) > 0 }
func (p Proximity) VeryClose() bool     { return p.ClosestKm < VeryCloseKm }

func ResolveProximity(zones []models.SensitiveZone, lat, lon float64) Proximity {
	p := Proximity{ClosestKm: math.Inf(1)}
	for _, z := range zones {
		d := Haversine(lat, lon, z.Latitude, z.Longitude)
		if d < p.ClosestKm {
			p.ClosestKm = d
			p.Closest = z.Name
		}
		if d < z.RadiusKm {
			p.NearbyZones = append(p.NearbyZones, NearbyZone{
				Name:       z.Name,
				Type:       z.Type,
				DistanceKm: math.Round(d*100) / 100,
			})
		}
	}
	sort.SliceStable(p.NearbyZones, func(i, j int) bool {
		return p.NearbyZones[i].DistanceKm < p.NearbyZones[j].DistanceKm
	})
	return p
}
