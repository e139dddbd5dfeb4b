package features

import (
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// Base band order of PlanetScope 3B AnalyticMS SR products.
const (
	BandBlue = iota
	BandGreen
	BandRed
	BandNIR
	baseBandCount
)

var baseBandNames = []string{"blue", "green", "red", "nir"}

type Options struct {
	Normalize   bool
	IncludeNDVI bool
	IncludeEVI  bool
	IncludeSAVI bool
	IncludeNDWI bool
}

// DefaultOptions matches the channel layout models are trained on:
// B, G, R, NIR, NDVI, EVI with normalized base bands.
func DefaultOptions() Options {
	return Options{Normalize: true, IncludeNDVI: true, IncludeEVI: true}
}

// ChannelCount is the number of channels Compute produces with these options.
func (o Options) ChannelCount() int {
	count := baseBandCount
	for _, include := range []bool{o.IncludeNDVI, o.IncludeEVI, o.IncludeSAVI, o.IncludeNDWI} {
		if include {
			count++
		}
	}
	return count
}

// Result is the computed feature stack plus the raw NDVI, which callers use
// to mask pixels where the index is undefined.
type Result struct {
	Features *raster.MultiChannelRaster
	RawNDVI  raster.Plane
}

// Compute builds the feature stack B, G, R, NIR followed by the selected
// indices in the order NDVI, EVI, SAVI, NDWI. Only the first four input
// channels are read; any further channels are dropped.
func Compute(image *raster.MultiChannelRaster, options Options) (*Result, error) {
	if image == nil || image.ChannelCount() < baseBandCount {
		count := 0
		if image != nil {
			count = image.ChannelCount()
		}
		return nil, fmt.Errorf("%w: expected at least %d bands (B, G, R, NIR), got %d", raster.ErrShapeMismatch, baseBandCount, count)
	}

	base := make([]raster.Plane, baseBandCount)
	for i := 0; i < baseBandCount; i++ {
		if options.Normalize {
			base[i] = NormalizeBand(image.Channels[i])
		} else {
			base[i] = image.Channels[i].Clone()
		}
	}

	blue, green, red, nir := base[BandBlue], base[BandGreen], base[BandRed], base[BandNIR]

	channels := append([]raster.Plane{}, base...)
	names := append([]string{}, baseBandNames...)

	rawNDVI := NDVI(red, nir)
	if options.IncludeNDVI {
		channels = append(channels, RescaleIndex(rawNDVI))
		names = append(names, "ndvi")
	}
	if options.IncludeEVI {
		channels = append(channels, RescaleIndex(EVI(blue, red, nir)))
		names = append(names, "evi")
	}
	if options.IncludeSAVI {
		channels = append(channels, RescaleIndex(SAVI(red, nir, SAVISoilFactor)))
		names = append(names, "savi")
	}
	if options.IncludeNDWI {
		channels = append(channels, RescaleIndex(NDWI(green, nir)))
		names = append(names, "ndwi")
	}

	stack, err := raster.NewMultiChannelRaster(channels, names)
	if err != nil {
		return nil, err
	}
	return &Result{Features: stack, RawNDVI: rawNDVI}, nil
}
