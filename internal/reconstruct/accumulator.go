package reconstruct

import (
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"

	"gonum.org/v1/gonum/floats"
)

// Accumulator merges per-tile probability planes back into an H×W map by
// summing overlapping predictions and dividing by the number of contributions.
type Accumulator struct {
	sum   raster.Plane
	count raster.Plane
}

func NewAccumulator(height, width int) *Accumulator {
	return &Accumulator{
		sum:   raster.NewPlane(height, width),
		count: raster.NewPlane(height, width),
	}
}

// Add folds in the prediction for tile. Only the readable block of prob is
// used; it starts at (PadTop, PadLeft) within the padded tile.
func (a *Accumulator) Add(tile tiling.Tile, prob raster.Plane) error {
	rows, cols := tile.Rows(), tile.Cols()
	if tile.R0 < 0 || tile.C0 < 0 || rows < 0 || cols < 0 || tile.R1 > a.sum.Height || tile.C1 > a.sum.Width {
		return fmt.Errorf("%w: tile rows %d:%d, cols %d:%d outside a %dx%d map", raster.ErrShapeMismatch, tile.R0, tile.R1, tile.C0, tile.C1, a.sum.Height, a.sum.Width)
	}
	if prob.Height < tile.PadTop+rows || prob.Width < tile.PadLeft+cols {
		return fmt.Errorf("%w: %dx%d prediction for a tile with %dx%d readable pixels", raster.ErrShapeMismatch, prob.Height, prob.Width, rows, cols)
	}
	for i := 0; i < rows; i++ {
		dst := (tile.R0+i)*a.sum.Width + tile.C0
		src := (tile.PadTop+i)*prob.Width + tile.PadLeft
		floats.Add(a.sum.Data[dst:dst+cols], prob.Data[src:src+cols])
		floats.AddConst(1, a.count.Data[dst:dst+cols])
	}
	return nil
}

// Coverage returns how many tiles contributed to each pixel.
func (a *Accumulator) Coverage() raster.Plane {
	return a.count.Clone()
}

// Normalize returns the averaged probability map. Pixels no tile covered keep
// probability 0.
func (a *Accumulator) Normalize() raster.Plane {
	out := a.sum.Clone()
	divisor := a.count.Clone()
	for i, c := range divisor.Data {
		if c == 0 {
			divisor.Data[i] = 1
		}
	}
	floats.Div(out.Data, divisor.Data)
	return out
}
