package tiling

import (
	"fmt"
	"iter"
)

// Tile describes one fixed-size window over an H×W raster. Row and Col are the
// requested origin; R0:R1, C0:C1 is the extent actually readable inside the
// raster, and the Pad fields are the shortfall to the full tile size.
type Tile struct {
	Row       int
	Col       int
	R0        int
	R1        int
	C0        int
	C1        int
	PadTop    int
	PadBottom int
	PadLeft   int
	PadRight  int
}

// Rows is the number of readable rows.
func (t Tile) Rows() int {
	return t.R1 - t.R0
}

// Cols is the number of readable columns.
func (t Tile) Cols() int {
	return t.C1 - t.C0
}

func (t Tile) Padded() bool {
	return t.PadTop > 0 || t.PadBottom > 0 || t.PadLeft > 0 || t.PadRight > 0
}

// Scheduler enumerates overlapping windows covering a raster.
type Scheduler struct {
	Height   int
	Width    int
	TileSize int
	Stride   int
}

// DefaultStride gives 50% overlap between neighbouring tiles.
func DefaultStride(tileSize int) int {
	return max(1, tileSize/2)
}

// NewScheduler validates the geometry. A stride <= 0 selects DefaultStride.
func NewScheduler(height, width, tileSize, stride int) (*Scheduler, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", height, width)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("invalid tile size %d", tileSize)
	}
	if stride <= 0 {
		stride = DefaultStride(tileSize)
	}
	return &Scheduler{Height: height, Width: width, TileSize: tileSize, Stride: stride}, nil
}

// TileAt computes the window for origin (row, col).
func (s *Scheduler) TileAt(row, col int) Tile {
	r0 := max(0, row)
	r1 := min(s.Height, row+s.TileSize)
	c0 := max(0, col)
	c1 := min(s.Width, col+s.TileSize)
	return Tile{
		Row:       row,
		Col:       col,
		R0:        r0,
		R1:        r1,
		C0:        c0,
		C1:        c1,
		PadTop:    r0 - row,
		PadBottom: row + s.TileSize - r1,
		PadLeft:   c0 - col,
		PadRight:  col + s.TileSize - c1,
	}
}

// Tiles yields every window in row-major origin order. Each call starts a new
// pass over the same deterministic sequence.
func (s *Scheduler) Tiles() iter.Seq[Tile] {
	return func(yield func(Tile) bool) {
		for row := 0; row < s.Height; row += s.Stride {
			for col := 0; col < s.Width; col += s.Stride {
				if !yield(s.TileAt(row, col)) {
					return
				}
			}
		}
	}
}

// Count is the number of tiles Tiles yields.
func (s *Scheduler) Count() int {
	rows := (s.Height + s.Stride - 1) / s.Stride
	cols := (s.Width + s.Stride - 1) / s.Stride
	return rows * cols
}
