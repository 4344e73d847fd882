package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

const yamlCatalog = `
image_dir: /srv/imagery
locations:
  - id: pulicat
    name: Pulicat Lagoon
    lat: 13.6
    lon: 80.3
    before: pulicat/before.png
    after: /abs/after.png
  - id: krishna_delta
    bbox: [80.8, 15.6, 81.2, 16.0]
zones:
  - name: Pulicat Lake Bird Sanctuary
    type: Wildlife Protected Area
    lat: 13.6
    lon: 80.3
    radius_km: 15
`

const tomlCatalog = `
[[locations]]
id = "nellore"
lat = 14.0
lon = 80.3
bbox = [79.8, 13.8, 80.8, 14.2]
`

const jsonCatalog = `{"locations": [{"id": "a", "lat": 1, "lon": 2}, {"id": "b", "lat": 3, "lon": 4}]}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCatalog_YAML(t *testing.T) {
	c, err := LoadCatalog(writeFile(t, "catalog.yaml", yamlCatalog), "/ignored")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	if len(c.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(c.Locations))
	}

	p, ok := c.Location("pulicat")
	if !ok {
		t.Fatal("pulicat not found")
	}
	if p.BeforePath != filepath.Join("/srv/imagery", "pulicat/before.png") {
		t.Errorf("unexpected before path %s", p.BeforePath)
	}
	if p.AfterPath != "/abs/after.png" {
		t.Errorf("absolute path should be kept, got %s", p.AfterPath)
	}
	if p.BBox != nil {
		t.Error("expected no bbox")
	}

	k, _ := c.Location("krishna_delta")
	if k.BBox == nil {
		t.Fatal("expected bbox")
	}
	if math.Abs(k.Latitude-15.8) > 1e-9 || math.Abs(k.Longitude-81.0) > 1e-9 {
		t.Errorf("expected bbox centre, got %v,%v", k.Latitude, k.Longitude)
	}
	if k.Name != "krishna_delta" {
		t.Errorf("name should default to id, got %s", k.Name)
	}
	if k.BeforePath != filepath.Join("/srv/imagery", "image_before.jpg") {
		t.Errorf("unexpected default before path %s", k.BeforePath)
	}

	if len(c.Zones) != 1 || c.Zones[0].RadiusKm != 15 {
		t.Errorf("unexpected zones: %+v", c.Zones)
	}
}

func TestLoadCatalog_TOML(t *testing.T) {
	c, err := LoadCatalog(writeFile(t, "catalog.toml", tomlCatalog), "/data")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	n, ok := c.Location("nellore")
	if !ok || n.BBox == nil || n.BBox.West != 79.8 {
		t.Fatalf("unexpected location: %+v", n)
	}
	if n.Latitude != 14.0 {
		t.Errorf("explicit centre should win over the bbox, got %v", n.Latitude)
	}
	if len(c.Zones) != 5 {
		t.Errorf("expected default zones, got %d", len(c.Zones))
	}
}

func TestLoadCatalog_JSON(t *testing.T) {
	c, err := LoadCatalog(writeFile(t, "catalog.json", jsonCatalog), "/data")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	ids := c.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected ids %v", ids)
	}
	if !c.Has("b") || c.Has("c") {
		t.Error("Has disagrees with the catalog")
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown extension", "catalog.ini", "x"},
		{"bad yaml", "catalog.yaml", "locations: [\n"},
		{"no locations", "catalog.json", `{"locations": []}`},
		{"duplicate id", "catalog.json", `{"locations": [{"id": "a"}, {"id": "a"}]}`},
		{"missing id", "catalog.json", `{"locations": [{"name": "x"}]}`},
		{"bad bbox", "catalog.json", `{"locations": [{"id": "a", "bbox": [1, 2, 3]}]}`},
		{"inverted bbox", "catalog.json", `{"locations": [{"id": "a", "bbox": [81, 14, 80, 13]}]}`},
		{"zone without radius", "catalog.json", `{"locations": [{"id": "a"}], "zones": [{"name": "z"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog(writeFile(t, tt.file, tt.content), "/data"); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"), "/data"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog("/data")
	if err := c.validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	n, ok := c.Location("nellore")
	if !ok {
		t.Fatal("nellore missing")
	}
	if got := n.BBox.Slice(); got[0] != 79.8 || got[3] != 14.2 {
		t.Errorf("unexpected nellore bbox %v", got)
	}
	if n.BeforePath != filepath.Join("/data", "image_before.jpg") {
		t.Errorf("unexpected before path %s", n.BeforePath)
	}
	if _, ok := c.Location("atlantis"); ok {
		t.Error("unexpected location")
	}
}
