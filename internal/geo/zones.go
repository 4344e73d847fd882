package geo

import "github.com/mr1hm/ocean-sentinel/internal/models"

// DefaultZones are the Bay of Bengal coastal zones used when the catalog does
// not define its own.
func DefaultZones() []models.SensitiveZone {
	return []models.SensitiveZone{
		{Name: "Pulicat Lake Bird Sanctuary", Type: "Wildlife Protected Area", Latitude: 13.6, Longitude: 80.3, RadiusKm: 15},
		{Name: "Coastal Fishing Villages", Type: "Human Settlement", Latitude: 14.4, Longitude: 79.95, RadiusKm: 10},
		{Name: "Mangrove Conservation Zone", Type: "Ecological Reserve", Latitude: 15.1, Longitude: 81.0, RadiusKm: 8},
		{Name: "Aquaculture Farms", Type: "Economic Zone", Latitude: 15.3, Longitude: 81.2, RadiusKm: 5},
		{Name: "Coral Reef Area", Type: "Ecological Reserve", Latitude: 13.2, Longitude: 80.6, RadiusKm: 12},
	}
}
