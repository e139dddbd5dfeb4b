package planet

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
)

// ReadQualityMask reads band 1 of a UDM2-style quality raster and resamples it
// onto a height×width grid with nearest-neighbour lookup.
func ReadQualityMask(path string, height, width int) (raster.Plane, error) {
	if err := checkExists(path); err != nil {
		return raster.Plane{}, err
	}

	var quality raster.Plane
	err := utils.ExecuteWithGDALLock(func() error {
		dataset, err := godal.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open TIFF file: %w", err)
		}
		defer dataset.Close()

		structure := dataset.Structure()
		bands := dataset.Bands()
		if len(bands) == 0 {
			return fmt.Errorf("quality raster has no bands")
		}
		quality, err = readBand(bands[0], structure.SizeX, structure.SizeY)
		return err
	})
	if err != nil {
		return raster.Plane{}, fmt.Errorf("failed to read quality mask %s: %w", path, err)
	}
	return ResampleNearest(quality, height, width), nil
}

// ResampleNearest maps destination pixel i to source pixel
// floor((i+0.5)*src/dst) on each axis.
func ResampleNearest(src raster.Plane, height, width int) raster.Plane {
	if src.Height == height && src.Width == width {
		return src.Clone()
	}
	out := raster.NewPlane(height, width)
	cols := make([]int, width)
	for j := range cols {
		cols[j] = min(src.Width-1, int((float64(j)+0.5)*float64(src.Width)/float64(width)))
	}
	for i := 0; i < height; i++ {
		srcRow := min(src.Height-1, int((float64(i)+0.5)*float64(src.Height)/float64(height)))
		for j, srcCol := range cols {
			out.Set(i, j, src.At(srcRow, srcCol))
		}
	}
	return out
}
