package features

import (
	"math"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// SAVISoilFactor is the soil brightness correction L used by SAVI.
const SAVISoilFactor = 0.5

// calculateIndex applies fn pixel by pixel. fn returns the numerator and
// denominator; a zero denominator yields NaN.
func calculateIndex(height, width int, fn func(i int) (float64, float64)) raster.Plane {
	result := raster.NewPlane(height, width)
	for i := range result.Data {
		numerator, denominator := fn(i)
		if denominator != 0 {
			result.Data[i] = numerator / denominator
		} else {
			result.Data[i] = math.NaN()
		}
	}
	return result
}

// NDVI = (NIR - Red) / (NIR + Red)
func NDVI(red, nir raster.Plane) raster.Plane {
	return calculateIndex(red.Height, red.Width, func(i int) (float64, float64) {
		return nir.Data[i] - red.Data[i], nir.Data[i] + red.Data[i]
	})
}

// EVI = 2.5 * (NIR - Red) / (NIR + 6*Red - 7.5*Blue + 1)
func EVI(blue, red, nir raster.Plane) raster.Plane {
	return calculateIndex(red.Height, red.Width, func(i int) (float64, float64) {
		return 2.5 * (nir.Data[i] - red.Data[i]), nir.Data[i] + 6*red.Data[i] - 7.5*blue.Data[i] + 1
	})
}

// SAVI = ((NIR - Red) / (NIR + Red + L)) * (1 + L)
func SAVI(red, nir raster.Plane, l float64) raster.Plane {
	return calculateIndex(red.Height, red.Width, func(i int) (float64, float64) {
		return (nir.Data[i] - red.Data[i]) * (1 + l), nir.Data[i] + red.Data[i] + l
	})
}

// NDWI = (Green - NIR) / (Green + NIR)
func NDWI(green, nir raster.Plane) raster.Plane {
	return calculateIndex(green.Height, green.Width, func(i int) (float64, float64) {
		return green.Data[i] - nir.Data[i], green.Data[i] + nir.Data[i]
	})
}

// RescaleIndex maps an index from [-1,1] to [0,1], clips, and replaces
// non-finite values (NaN -> 0, +Inf -> 1, -Inf -> 0). Undefined pixels are
// therefore indistinguishable from strongly negative ones after this step;
// they must be masked through mask.FromIndex on the raw index.
func RescaleIndex(index raster.Plane) raster.Plane {
	out := raster.NewPlane(index.Height, index.Width)
	for i, v := range index.Data {
		out.Data[i] = sanitize(clip01((v + 1) / 2))
	}
	return out
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return 1
	case math.IsInf(v, -1):
		return 0
	}
	return v
}
