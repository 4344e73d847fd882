package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mr1hm/ocean-sentinel/internal/geo"
	"github.com/mr1hm/ocean-sentinel/internal/models"
)

// Catalog is the set of monitored locations and the sensitive zones risk is
// measured against.
type Catalog struct {
	Locations []models.Location
	Zones     []models.SensitiveZone
}

type catalogFile struct {
	ImageDir  string                 `json:"image_dir" yaml:"image_dir" toml:"image_dir"`
	Locations []locationEntry        `json:"locations" yaml:"locations" toml:"locations"`
	Zones     []models.SensitiveZone `json:"zones" yaml:"zones" toml:"zones"`
}

type locationEntry struct {
	ID          string    `json:"id" yaml:"id" toml:"id"`
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Description string    `json:"description" yaml:"description" toml:"description"`
	Latitude    float64   `json:"lat" yaml:"lat" toml:"lat"`
	Longitude   float64   `json:"lon" yaml:"lon" toml:"lon"`
	BBox        []float64 `json:"bbox" yaml:"bbox" toml:"bbox"`
	Before      string    `json:"before" yaml:"before" toml:"before"`
	After       string    `json:"after" yaml:"after" toml:"after"`
}

// DefaultCatalog is the Bay of Bengal deployment: three offshore locations
// sharing one image pair under imageDir.
func DefaultCatalog(imageDir string) *Catalog {
	before := filepath.Join(imageDir, "image_before.jpg")
	after := filepath.Join(imageDir, "image_after.jpg")
	return &Catalog{
		Locations: []models.Location{
			{
				ID:          "nellore",
				Name:        "Nellore Offshore Waters",
				Description: "Ocean waters east of Nellore coast",
				Latitude:    14.0,
				Longitude:   80.3,
				BBox:        &models.BBox{West: 79.8, South: 13.8, East: 80.8, North: 14.2},
				BeforePath:  before,
				AfterPath:   after,
			},
			{
				ID:          "bay_of_bengal_1",
				Name:        "Bay of Bengal - Point 1",
				Description: "Open ocean monitoring point",
				Latitude:    15.2,
				Longitude:   81.5,
				BBox:        &models.BBox{West: 80.8, South: 15.0, East: 81.8, North: 15.4},
				BeforePath:  before,
				AfterPath:   after,
			},
			{
				ID:          "chennai_coast",
				Name:        "Chennai Offshore Waters",
				Description: "Ocean waters east of Chennai coast",
				Latitude:    13.0,
				Longitude:   80.5,
				BBox:        &models.BBox{West: 80.0, South: 12.8, East: 81.0, North: 13.2},
				BeforePath:  before,
				AfterPath:   after,
			},
		},
		Zones: geo.DefaultZones(),
	}
}

// LoadCatalog reads a catalog file, choosing the decoder by extension. Relative
// image paths resolve against the file's image_dir, then imageDir. A file
// without zones keeps the default zones.
func LoadCatalog(path, imageDir string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f catalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %q", ext)
	}

	if f.ImageDir != "" {
		imageDir = f.ImageDir
	}

	c := &Catalog{Zones: f.Zones}
	if len(c.Zones) == 0 {
		c.Zones = geo.DefaultZones()
	}

	for i, e := range f.Locations {
		loc, err := e.location(imageDir)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
		c.Locations = append(c.Locations, loc)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (e locationEntry) location(imageDir string) (models.Location, error) {
	if e.ID == "" {
		return models.Location{}, fmt.Errorf("id is required")
	}
	loc := models.Location{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		BeforePath:  resolve(imageDir, e.Before, "image_before.jpg"),
		AfterPath:   resolve(imageDir, e.After, "image_after.jpg"),
	}
	if loc.Name == "" {
		loc.Name = e.ID
	}
	if len(e.BBox) > 0 {
		b, err := models.BBoxFromSlice(e.BBox)
		if err != nil {
			return models.Location{}, fmt.Errorf("%s: %w", e.ID, err)
		}
		loc.BBox = &b
		// a bbox without an explicit centre is centred on itself
		if e.Latitude == 0 && e.Longitude == 0 {
			c := b.Center()
			loc.Latitude, loc.Longitude = c.Latitude, c.Longitude
		}
	}
	return loc, nil
}

func resolve(dir, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (c *Catalog) validate() error {
	if len(c.Locations) == 0 {
		return fmt.Errorf("catalog has no locations")
	}
	seen := make(map[string]bool, len(c.Locations))
	for _, l := range c.Locations {
		if seen[l.ID] {
			return fmt.Errorf("duplicate location id: %s", l.ID)
		}
		seen[l.ID] = true
	}
	for _, z := range c.Zones {
		if z.Name == "" || z.RadiusKm <= 0 {
			return fmt.Errorf("zone %q needs a name and a positive radius", z.Name)
		}
	}
	return nil
}

// Location looks up a location by id.
func (c *Catalog) Location(id string) (*models.Location, bool) {
	for i := range c.Locations {
		if c.Locations[i].ID == id {
			return &c.Locations[i], true
		}
	}
	return nil, false
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Locations))
	for i, l := range c.Locations {
		ids[i] = l.ID
	}
	return ids
}

func (c *Catalog) Has(id string) bool {
	return slices.Contains(c.IDs(), id)
}
