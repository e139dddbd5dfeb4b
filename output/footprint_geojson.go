package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// FootprintSummary is attached as properties of the footprint feature.
type FootprintSummary struct {
	Scene        string
	Method       string
	Counts       raster.MaskCounts
	WoodedAreaM2 *float64
	Kappa        *float64
}

// CreateFootprintGeoJSON writes a single-feature collection whose polygon is
// the scene footprint (lon/lat corners, unclosed) and whose properties carry
// the mask summary.
func CreateFootprintGeoJSON(corners [][2]float64, summary FootprintSummary, outputPath string) (string, error) {
	if len(corners) < 3 {
		return "", fmt.Errorf("footprint needs at least 3 corners, got %d", len(corners))
	}
	ring := make(orb.Ring, 0, len(corners)+1)
	for _, c := range corners {
		ring = append(ring, orb.Point{c[0], c[1]})
	}
	ring = append(ring, ring[0])
	polygon := orb.Polygon{ring}

	feature := geojson.NewFeature(polygon)
	feature.Properties["scene"] = summary.Scene
	feature.Properties["method"] = summary.Method
	feature.Properties["wooded_pixels"] = summary.Counts.Wooded
	feature.Properties["non_wooded_pixels"] = summary.Counts.NonWooded
	feature.Properties["nodata_pixels"] = summary.Counts.NoData
	if total := summary.Counts.Wooded + summary.Counts.NonWooded; total > 0 {
		feature.Properties["wooded_fraction"] = float64(summary.Counts.Wooded) / float64(total)
	}
	if summary.WoodedAreaM2 != nil {
		feature.Properties["wooded_area_ha"] = *summary.WoodedAreaM2 / 10_000
	}
	if summary.Kappa != nil {
		feature.Properties["kappa"] = *summary.Kappa
	}
	centroid, _ := planar.CentroidArea(polygon)
	feature.Properties["centroid"] = []float64{centroid.X(), centroid.Y()}

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	data, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("error encoding GeoJSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create GeoJSON directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("error creating GeoJSON file: %w", err)
	}
	return outputPath, nil
}
