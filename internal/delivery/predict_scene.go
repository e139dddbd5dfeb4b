package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/mask"
	"github.com/forest-guardian/wooded-mask/internal/ml"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/reconstruct"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
)

const (
	DefaultTileSize  = 64
	DefaultBatchSize = 8
)

type PredictRequest struct {
	ImagePath   string
	QualityPath string
	OutputPath  string
	// ReferencePath is auto-detected next to the image when empty.
	ReferencePath string
	// ProbabilityPath, when set, also receives the averaged probability map.
	ProbabilityPath string
	Features        features.Options
	TileSize        int
	Stride          int
	BatchSize       int
	PadMode         tiling.PadMode
	Quiet           bool
}

type PredictResult struct {
	SceneID       string
	OutputPath    string
	Mask          raster.TernaryMask
	Metadata      raster.Metadata
	Counts        raster.MaskCounts
	Area          WoodedArea
	TileCount     int
	ReferencePath string
	Report        *accuracy.Report
}

func (r PredictRequest) withDefaults() PredictRequest {
	if r.TileSize <= 0 {
		r.TileSize = DefaultTileSize
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	return r
}

// loadValidity reads the optional quality raster onto the image grid. A
// quality path that does not exist is reported and ignored.
func loadValidity(qualityPath string, height, width int) (raster.ValidityMask, error) {
	if qualityPath == "" {
		return mask.AllValid(height, width), nil
	}
	if err := checkFile(qualityPath); err != nil {
		fmt.Printf("Warning: quality mask not found: %s, proceeding without mask.\n", qualityPath)
		return mask.AllValid(height, width), nil
	}
	quality, err := planet.ReadQualityMask(qualityPath, height, width)
	if err != nil {
		return raster.ValidityMask{}, err
	}
	return mask.FromQuality(quality), nil
}

// PredictScene runs the tiled classifier over one scene and writes the
// ternary mask. Nothing is written when any step fails.
func PredictScene(ctx context.Context, classifier ml.Classifier, req PredictRequest) (*PredictResult, error) {
	req = req.withDefaults()
	start := time.Now()

	stepStart := time.Now()
	image, meta, err := planet.ReadImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	computed, err := features.Compute(image, req.Features)
	if err != nil {
		return nil, err
	}
	stack := computed.Features
	if expected := ml.ExpectedChannels(classifier); expected > 0 && expected != stack.ChannelCount() {
		return nil, fmt.Errorf("%w: model expects %d channels, features have %d (%v)",
			raster.ErrChannelCountMismatch, expected, stack.ChannelCount(), stack.Names)
	}
	validity, err := loadValidity(req.QualityPath, meta.Height, meta.Width)
	if err != nil {
		return nil, err
	}
	if validity, err = mask.Combine(validity, mask.FromIndex(computed.RawNDVI)); err != nil {
		return nil, err
	}
	if !req.Quiet {
		step("Loading features", stepStart)
	}

	stepStart = time.Now()
	prob, tileCount, err := classifyTiles(ctx, classifier, stack, req)
	if err != nil {
		return nil, err
	}
	if !req.Quiet {
		step("Classifying tiles", stepStart)
	}

	woodedMask, err := mask.Threshold(prob, validity)
	if err != nil {
		return nil, err
	}
	if err := planet.WriteTernaryMask(req.OutputPath, woodedMask, meta); err != nil {
		return nil, err
	}
	if req.ProbabilityPath != "" {
		if err := planet.WriteProbability(req.ProbabilityPath, prob, meta); err != nil {
			return nil, err
		}
	}

	counts := woodedMask.Counts()
	result := &PredictResult{
		SceneID:    SceneID(req.ImagePath),
		OutputPath: req.OutputPath,
		Mask:       woodedMask,
		Metadata:   meta,
		Counts:     counts,
		Area:       woodedArea(meta, counts),
		TileCount:  tileCount,
	}

	refPath := req.ReferencePath
	if refPath == "" {
		if detected, ok := ReferenceFor(req.ImagePath); ok {
			fmt.Printf("Auto-detected reference: %s\n", detected)
			refPath = detected
		}
	}
	if refPath != "" {
		report, err := evaluateAgainst(woodedMask, refPath, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate against %s: %w", refPath, err)
		}
		result.ReferencePath = refPath
		result.Report = &report
	}

	if !req.Quiet {
		step("PredictScene", start)
	}
	return result, nil
}

// classifyTiles feeds the scheduler's patches to the classifier in batches and
// returns the overlap-averaged probability map.
func classifyTiles(ctx context.Context, classifier ml.Classifier, stack *raster.MultiChannelRaster, req PredictRequest) (raster.Plane, int, error) {
	scheduler, err := tiling.NewScheduler(stack.Height, stack.Width, req.TileSize, req.Stride)
	if err != nil {
		return raster.Plane{}, 0, err
	}
	total := scheduler.Count()
	if total == 0 {
		return raster.Plane{}, 0, fmt.Errorf("%w: no tiles for a %dx%d raster", raster.ErrEmptyDataset, stack.Height, stack.Width)
	}

	var bar *progressbar.ProgressBar
	if req.Quiet {
		bar = progressbar.DefaultSilent(int64(total))
	} else {
		bar = progressbar.Default(int64(total), "Classifying tiles")
	}
	defer bar.Finish()

	acc := reconstruct.NewAccumulator(stack.Height, stack.Width)
	tiles := make([]tiling.Tile, 0, req.BatchSize)
	patches := make([]tiling.Patch, 0, req.BatchSize)

	flush := func() error {
		if len(patches) == 0 {
			return nil
		}
		probabilities, err := classifier.Infer(ctx, patches)
		if err != nil {
			return fmt.Errorf("classifier failed: %w", err)
		}
		if err := ml.CheckBatch(patches, probabilities); err != nil {
			return err
		}
		for i, tile := range tiles {
			if err := acc.Add(tile, probabilities[i]); err != nil {
				return err
			}
		}
		bar.Add(len(tiles))
		tiles, patches = tiles[:0], patches[:0]
		return nil
	}

	for tile := range scheduler.Tiles() {
		if err := ctx.Err(); err != nil {
			return raster.Plane{}, 0, err
		}
		tiles = append(tiles, tile)
		patches = append(patches, tiling.ExtractPatch(stack, tile, req.TileSize, req.PadMode))
		if len(patches) >= req.BatchSize {
			if err := flush(); err != nil {
				return raster.Plane{}, 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return raster.Plane{}, 0, err
	}
	return acc.Normalize(), total, nil
}
