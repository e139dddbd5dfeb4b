package ml

import (
	"context"
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
)

// Classifier maps a batch of C×P×P patches to one P×P wooded probability
// plane per patch, in batch order.
type Classifier interface {
	Infer(ctx context.Context, batch []tiling.Patch) ([]raster.Plane, error)
}

// ChannelAware is implemented by classifiers that know how many input
// channels their model was trained on.
type ChannelAware interface {
	ExpectedChannels() int
}

// ExpectedChannels returns the classifier's channel count, or 0 when unknown.
func ExpectedChannels(c Classifier) int {
	if aware, ok := c.(ChannelAware); ok {
		return aware.ExpectedChannels()
	}
	return 0
}

// CheckBatch verifies a classifier response against its request.
func CheckBatch(batch []tiling.Patch, probabilities []raster.Plane) error {
	if len(probabilities) != len(batch) {
		return fmt.Errorf("classifier returned %d probability planes for %d patches", len(probabilities), len(batch))
	}
	for i, p := range probabilities {
		size := batch[i].Size
		if p.Height != size || p.Width != size || len(p.Data) != size*size {
			return fmt.Errorf("%w: probability plane %d is %dx%d, expected %dx%d", raster.ErrShapeMismatch, i, p.Height, p.Width, size, size)
		}
	}
	return nil
}

// FuncClassifier adapts a per-patch function.
type FuncClassifier struct {
	Channels int
	Fn       func(patch tiling.Patch) raster.Plane
}

func (f FuncClassifier) Infer(ctx context.Context, batch []tiling.Patch) ([]raster.Plane, error) {
	out := make([]raster.Plane, len(batch))
	for i, patch := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = f.Fn(patch)
	}
	return out, nil
}

func (f FuncClassifier) ExpectedChannels() int {
	return f.Channels
}

// ConstantClassifier predicts the same probability everywhere.
func ConstantClassifier(channels int, probability float64) FuncClassifier {
	return FuncClassifier{
		Channels: channels,
		Fn: func(patch tiling.Patch) raster.Plane {
			p := raster.NewPlane(patch.Size, patch.Size)
			p.Fill(probability)
			return p
		},
	}
}

// NDVIClassifier is the closed-form model: it reads the rescaled NDVI channel
// of each patch and returns a probability that exceeds 0.5 exactly where the
// raw NDVI exceeds Threshold.
type NDVIClassifier struct {
	Channels    int
	NDVIChannel int
	Threshold   float64
}

func (n NDVIClassifier) Infer(ctx context.Context, batch []tiling.Patch) ([]raster.Plane, error) {
	out := make([]raster.Plane, len(batch))
	for i, patch := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n.NDVIChannel >= patch.Channels {
			return nil, fmt.Errorf("%w: NDVI channel %d not present in a %d-channel patch", raster.ErrChannelCountMismatch, n.NDVIChannel, patch.Channels)
		}
		p := raster.NewPlane(patch.Size, patch.Size)
		for r := 0; r < patch.Size; r++ {
			for c := 0; c < patch.Size; c++ {
				ndvi := 2*patch.At(n.NDVIChannel, r, c) - 1
				p.Set(r, c, clip01(0.5+(ndvi-n.Threshold)/2))
			}
		}
		out[i] = p
	}
	return out, nil
}

func (n NDVIClassifier) ExpectedChannels() int {
	return n.Channels
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
