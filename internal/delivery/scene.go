package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

var sceneSuffixes = []string{"_3B_AnalyticMS_SR", "_3B_AnalyticMS"}

// SceneID strips the directory, extension and PlanetScope product suffix from
// an image path.
func SceneID(imagePath string) string {
	id := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	for _, suffix := range sceneSuffixes {
		id = strings.ReplaceAll(id, suffix, "")
	}
	return id
}

// SceneDate parses the acquisition date from the leading YYYYMMDD of a scene ID.
func SceneDate(sceneID string) (time.Time, error) {
	if len(sceneID) < 8 {
		return time.Time{}, fmt.Errorf("scene id %q does not start with a date", sceneID)
	}
	date, err := time.Parse("20060102", sceneID[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("scene id %q does not start with a date: %w", sceneID, err)
	}
	return date, nil
}

// ReferenceFor returns <dir>/<scene>_reference_wooded.tif when that file
// exists next to the image.
func ReferenceFor(imagePath string) (string, bool) {
	candidate := filepath.Join(filepath.Dir(imagePath), SceneID(imagePath)+"_reference_wooded.tif")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}
	return "", false
}

// QualityFor returns <dir>/<scene>_3B_udm2.tif when that file exists.
func QualityFor(imagePath string) (string, bool) {
	candidate := filepath.Join(filepath.Dir(imagePath), SceneID(imagePath)+"_3B_udm2.tif")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}
	return "", false
}

// WoodedArea is the area covered by wooded pixels. Square metres are only
// meaningful for a projected CRS; otherwise the value is in squared map units
// and projected is false.
type WoodedArea struct {
	Value     float64
	Projected bool
}

func woodedArea(meta raster.Metadata, counts raster.MaskCounts) WoodedArea {
	return WoodedArea{
		Value:     float64(counts.Wooded) * meta.PixelArea(),
		Projected: meta.IsProjected(),
	}
}

func (a WoodedArea) String() string {
	if a.Projected {
		return fmt.Sprintf("%.2f ha  (%.4f km²)", a.Value/10_000, a.Value/1_000_000)
	}
	return fmt.Sprintf("%.2f (map-unit²; CRS is geographic, use a projected CRS for ha/km²)", a.Value)
}

// SquareMetres returns the area when it is metric.
func (a WoodedArea) SquareMetres() *float64 {
	if !a.Projected {
		return nil
	}
	v := a.Value
	return &v
}

func step(name string, start time.Time) {
	fmt.Printf("%s took %v\n", name, time.Since(start).Round(time.Millisecond))
}
