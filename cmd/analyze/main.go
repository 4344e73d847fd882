// Command analyze scores one before/after image pair and prints the result
// as JSON. Nothing is recorded.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mr1hm/ocean-sentinel/internal/anomaly"
	"github.com/mr1hm/ocean-sentinel/internal/config"
	"github.com/mr1hm/ocean-sentinel/internal/features"
	"github.com/mr1hm/ocean-sentinel/internal/imagery"
	"github.com/mr1hm/ocean-sentinel/internal/indicators"
	"github.com/mr1hm/ocean-sentinel/internal/logging"
	"github.com/mr1hm/ocean-sentinel/internal/models"
	"github.com/mr1hm/ocean-sentinel/internal/pipeline"
	"github.com/mr1hm/ocean-sentinel/internal/risk"
)

func main() {
	_ = godotenv.Load()

	beforePath := flag.String("before", "", "path to the before image")
	afterPath := flag.String("after", "", "path to the after image")
	bbox := flag.String("bbox", "", "bounding box as west,south,east,north")
	location := flag.String("location", "", "catalog location whose bbox and centre to use")
	mode := flag.String("mode", string(features.ModeEnhanced), "feature mode: basic or enhanced")
	modelDir := flag.String("model-dir", "", "directory of the cached model (empty: train in memory)")
	catalogPath := flag.String("catalog", "", "catalog file (default: built-in locations)")
	flag.Parse()

	logging.Setup(os.Getenv("LOG_LEVEL"), "text")

	if *beforePath == "" || *afterPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	fm, err := features.ParseMode(*mode)
	if err != nil {
		logging.Fatalf("%v", err)
	}

	catalog := config.DefaultCatalog("")
	if *catalogPath != "" {
		if catalog, err = config.LoadCatalog(*catalogPath, ""); err != nil {
			logging.Fatalf("Failed to load catalog: %v", err)
		}
	}

	before, err := imagery.LoadFile(*beforePath)
	if err != nil {
		logging.Fatalf("%v", err)
	}
	after, err := imagery.LoadFile(*afterPath)
	if err != nil {
		logging.Fatalf("%v", err)
	}

	req := pipeline.Request{Before: before, After: after}
	if *location != "" {
		loc, ok := catalog.Location(*location)
		if !ok {
			logging.Fatalf("unknown location %q, available: %s", *location, strings.Join(catalog.IDs(), ", "))
		}
		req.BBox = loc.BBox
		req.Center = loc.Coordinates()
	}
	if *bbox != "" {
		b, err := parseBBox(*bbox)
		if err != nil {
			logging.Fatalf("%v", err)
		}
		req.BBox = &b
		req.Center = b.Center()
	}

	classifier := anomaly.NewClassifier(*modelDir, fm)
	aggregator := risk.NewAggregator(nil, catalog.Zones, time.Now)
	analyzer := pipeline.NewAnalyzer(classifier, aggregator, indicators.DefaultThresholds())

	res, err := analyzer.Analyze(context.Background(), req)
	if err != nil {
		logging.Fatalf("analysis failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logging.Fatalf("%v", err)
	}
}

func parseBBox(s string) (models.BBox, error) {
	var v []float64
	for _, p := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.BBox{}, err
		}
		v = append(v, f)
	}
	return models.BBoxFromSlice(v)
}
