package features

import (
	"math"
	"slices"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

const (
	lowPercentile  = 1
	highPercentile = 99
)

// NanPercentiles returns the requested percentiles (0-100) of values ignoring
// NaN, interpolating linearly between closest ranks. ok is false when every
// value is NaN.
func NanPercentiles(values []float64, qs ...float64) ([]float64, bool) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil, false
	}
	slices.Sort(sorted)

	result := make([]float64, len(qs))
	for i, q := range qs {
		result[i] = percentileSorted(sorted, q)
	}
	return result, true
}

func percentileSorted(sorted []float64, q float64) float64 {
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// NormalizeBand stretches the 1st..99th percentile range of band onto [0,1].
// A constant band is only clipped to [0,1]. NaN pixels stay NaN.
func NormalizeBand(band raster.Plane) raster.Plane {
	out := band.Clone()

	bounds, ok := NanPercentiles(band.Data, lowPercentile, highPercentile)
	if !ok {
		return out
	}
	lo, hi := bounds[0], bounds[1]

	if hi > lo {
		scale := hi - lo
		for i, v := range out.Data {
			out.Data[i] = clip01((v - lo) / scale)
		}
		return out
	}
	for i, v := range out.Data {
		out.Data[i] = clip01(v)
	}
	return out
}
