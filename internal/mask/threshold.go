package mask

import (
	"math"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

const (
	// ProbabilityCutoff is the fixed decision boundary; a pixel is wooded only
	// when its probability is strictly greater.
	ProbabilityCutoff = 0.5
	// DefaultNDVIThreshold is used by the index-only method.
	DefaultNDVIThreshold = 0.4
)

// Threshold turns an averaged probability map into a ternary mask. Invalid
// pixels become NoDataSentinel regardless of their probability.
func Threshold(prob raster.Plane, validity raster.ValidityMask) (raster.TernaryMask, error) {
	if err := checkShape(prob.Height, prob.Width, validity); err != nil {
		return raster.TernaryMask{}, err
	}
	out := raster.NewTernaryMask(prob.Height, prob.Width)
	for i, p := range prob.Data {
		switch {
		case !validity.Valid[i]:
			out.Data[i] = raster.NoDataSentinel
		case p > ProbabilityCutoff:
			out.Data[i] = raster.Wooded
		default:
			out.Data[i] = raster.NonWooded
		}
	}
	return out, nil
}

// ThresholdIndex classifies directly from a raw index: wooded where the index
// is strictly above threshold. Undefined index values are NoDataSentinel.
func ThresholdIndex(index raster.Plane, threshold float64, validity raster.ValidityMask) (raster.TernaryMask, error) {
	if err := checkShape(index.Height, index.Width, validity); err != nil {
		return raster.TernaryMask{}, err
	}
	out := raster.NewTernaryMask(index.Height, index.Width)
	for i, v := range index.Data {
		switch {
		case !validity.Valid[i] || math.IsNaN(v):
			out.Data[i] = raster.NoDataSentinel
		case v > threshold:
			out.Data[i] = raster.Wooded
		default:
			out.Data[i] = raster.NonWooded
		}
	}
	return out, nil
}
