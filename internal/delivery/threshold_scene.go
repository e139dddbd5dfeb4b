package delivery

import (
	"fmt"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/mask"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

type ThresholdRequest struct {
	ImagePath   string
	QualityPath string
	OutputPath  string
	// Threshold on raw NDVI; DefaultNDVIThreshold when nil.
	Threshold *float64
}

type ThresholdResult struct {
	SceneID    string
	OutputPath string
	Mask       raster.TernaryMask
	Metadata   raster.Metadata
	Counts     raster.MaskCounts
	Area       WoodedArea
}

// ThresholdScene maps wooded pixels as raw NDVI above a threshold, without a
// model. Quality-masked and NDVI-undefined pixels become nodata.
func ThresholdScene(req ThresholdRequest) (*ThresholdResult, error) {
	start := time.Now()
	threshold := mask.DefaultNDVIThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	image, meta, err := planet.ReadImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	if image.ChannelCount() <= features.BandNIR {
		return nil, fmt.Errorf("%w: expected at least %d bands (B, G, R, NIR), got %d", raster.ErrShapeMismatch, features.BandNIR+1, image.ChannelCount())
	}

	ndvi := features.NDVI(image.Channels[features.BandRed], image.Channels[features.BandNIR])
	validity, err := loadValidity(req.QualityPath, meta.Height, meta.Width)
	if err != nil {
		return nil, err
	}
	woodedMask, err := mask.ThresholdIndex(ndvi, threshold, validity)
	if err != nil {
		return nil, err
	}
	if err := planet.WriteTernaryMask(req.OutputPath, woodedMask, meta); err != nil {
		return nil, err
	}

	counts := woodedMask.Counts()
	step("ThresholdScene", start)
	return &ThresholdResult{
		SceneID:    SceneID(req.ImagePath),
		OutputPath: req.OutputPath,
		Mask:       woodedMask,
		Metadata:   meta,
		Counts:     counts,
		Area:       woodedArea(meta, counts),
	}, nil
}
