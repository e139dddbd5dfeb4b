package features

import (
	"fmt"
	"math"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
	"gonum.org/v1/gonum/floats"
)

var TemporalFeatureNames = []string{"mean_ndvi", "max_ndvi", "min_ndvi", "std_ndvi", "doy_max_ndvi"}

// ComputeTemporal reduces a dated stack of raw NDVI planes to five channels:
// NaN-ignoring mean, max, min and population standard deviation of NDVI and
// the day of year (divided by 365) at which NDVI peaked. Planes whose shape
// differs from the earliest scene are skipped.
//
// The reductions run plane by plane with running accumulators, so the cost is
// one pass over the stack regardless of scene count.
func ComputeTemporal(ndviByDate map[time.Time]raster.Plane) (*raster.MultiChannelRaster, error) {
	dates := utils.GetSortedKeys(ndviByDate, true)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no NDVI scenes to reduce", raster.ErrEmptyDataset)
	}

	reference := ndviByDate[dates[0]]
	height, width := reference.Height, reference.Width
	size := height * width

	count := make([]float64, size)
	mean := make([]float64, size)
	m2 := make([]float64, size)
	maxNDVI := filled(size, math.Inf(-1))
	minNDVI := filled(size, math.Inf(1))
	doyMax := make([]float64, size)

	used := 0
	for _, date := range dates {
		plane := ndviByDate[date]
		if !plane.SameShape(reference) {
			fmt.Printf("Skipping NDVI scene %s: shape %dx%d differs from %dx%d\n", date.Format("2006-01-02"), plane.Height, plane.Width, height, width)
			continue
		}
		used++
		doy := float64(date.YearDay()) / 365.0
		for i, v := range plane.Data {
			if math.IsNaN(v) {
				continue
			}
			count[i]++
			delta := v - mean[i]
			mean[i] += delta / count[i]
			m2[i] += delta * (v - mean[i])
			// strict comparison keeps the earliest date on ties
			if v > maxNDVI[i] {
				maxNDVI[i] = v
				doyMax[i] = doy
			}
			if v < minNDVI[i] {
				minNDVI[i] = v
			}
		}
	}
	if used == 0 {
		return nil, fmt.Errorf("%w: no NDVI scene matched the reference shape", raster.ErrEmptyDataset)
	}

	std := make([]float64, size)
	for i := range std {
		if count[i] == 0 {
			mean[i], maxNDVI[i], minNDVI[i], std[i] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			continue
		}
		std[i] = math.Sqrt(m2[i] / count[i])
	}

	for _, plane := range [][]float64{mean, maxNDVI, minNDVI} {
		floats.AddConst(1, plane)
		floats.Scale(0.5, plane)
	}
	floats.Scale(0.5, std)

	channels := make([]raster.Plane, 0, len(TemporalFeatureNames))
	for _, data := range [][]float64{mean, maxNDVI, minNDVI, std, doyMax} {
		for i, v := range data {
			data[i] = sanitize(clip01(v))
		}
		channels = append(channels, raster.Plane{Height: height, Width: width, Data: data})
	}
	return raster.NewMultiChannelRaster(channels, TemporalFeatureNames)
}

func filled(size int, value float64) []float64 {
	data := make([]float64, size)
	for i := range data {
		data[i] = value
	}
	return data
}
