package planet

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
)

// Footprint returns the raster's outer corners as lon/lat pairs in WGS84, in
// ring order starting at the top-left. A raster without a projection is
// returned in its own map coordinates.
func Footprint(meta raster.Metadata) ([][2]float64, error) {
	h, w := float64(meta.Height), float64(meta.Width)
	xs := make([]float64, 4)
	ys := make([]float64, 4)
	for i, corner := range [][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		xs[i], ys[i] = meta.PixelToGeo(corner[0], corner[1])
	}

	if meta.Projection != "" {
		err := utils.ExecuteWithGDALLock(func() error {
			srcSR, err := godal.NewSpatialRefFromWKT(meta.Projection)
			if err != nil {
				return fmt.Errorf("invalid projection: %w", err)
			}
			defer srcSR.Close()
			dstSR, err := godal.NewSpatialRefFromEPSG(4326)
			if err != nil {
				return fmt.Errorf("failed to build WGS84 reference: %w", err)
			}
			defer dstSR.Close()
			tr, err := godal.NewTransform(srcSR, dstSR)
			if err != nil {
				return fmt.Errorf("failed to build transform: %w", err)
			}
			defer tr.Close()
			if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
				return fmt.Errorf("transform error: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	ring := make([][2]float64, 4)
	for i := range ring {
		ring[i] = [2]float64{xs[i], ys[i]}
	}
	return ring, nil
}
