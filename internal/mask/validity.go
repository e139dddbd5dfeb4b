package mask

import (
	"fmt"
	"math"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// FromQuality marks pixels whose quality value is non-zero as usable. The
// quality plane must already be on the image grid.
func FromQuality(quality raster.Plane) raster.ValidityMask {
	m := raster.NewValidityMask(quality.Height, quality.Width, false)
	for i, v := range quality.Data {
		m.Valid[i] = v != 0 && !math.IsNaN(v)
	}
	return m
}

// FromIndex marks pixels where the raw index is finite.
func FromIndex(index raster.Plane) raster.ValidityMask {
	m := raster.NewValidityMask(index.Height, index.Width, false)
	for i, v := range index.Data {
		m.Valid[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return m
}

func AllValid(height, width int) raster.ValidityMask {
	return raster.NewValidityMask(height, width, true)
}

// Combine ANDs any number of masks; all must share one shape.
func Combine(first raster.ValidityMask, rest ...raster.ValidityMask) (raster.ValidityMask, error) {
	out := first
	for _, m := range rest {
		var err error
		if out, err = out.And(m); err != nil {
			return raster.ValidityMask{}, err
		}
	}
	return out, nil
}

func checkShape(height, width int, validity raster.ValidityMask) error {
	if validity.Height != height || validity.Width != width {
		return fmt.Errorf("%w: %dx%d plane with %dx%d validity mask", raster.ErrShapeMismatch, height, width, validity.Height, validity.Width)
	}
	return nil
}
