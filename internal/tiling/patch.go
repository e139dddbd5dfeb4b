package tiling

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// PadMode selects how the part of a tile outside the raster is filled.
type PadMode int

const (
	// PadEdge replicates the nearest readable pixel.
	PadEdge PadMode = iota
	// PadZero fills with zeros.
	PadZero
)

func ParsePadMode(s string) (PadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "edge":
		return PadEdge, nil
	case "zero":
		return PadZero, nil
	}
	return PadEdge, fmt.Errorf("unknown pad mode %q (expected edge or zero)", s)
}

func (m PadMode) String() string {
	if m == PadZero {
		return "zero"
	}
	return "edge"
}

// Patch is a C×P×P block of feature values, channel-major.
type Patch struct {
	Channels int
	Size     int
	Data     []float64
}

func (p Patch) At(channel, row, col int) float64 {
	return p.Data[(channel*p.Size+row)*p.Size+col]
}

// ExtractPatch copies the tile window out of image, padding to the full tile
// size according to mode.
func ExtractPatch(image *raster.MultiChannelRaster, tile Tile, size int, mode PadMode) Patch {
	patch := Patch{
		Channels: image.ChannelCount(),
		Size:     size,
		Data:     make([]float64, image.ChannelCount()*size*size),
	}

	for c, channel := range image.Channels {
		offset := c * size * size
		for i := 0; i < size; i++ {
			srcRow := tile.R0 + i - tile.PadTop
			rowInside := srcRow >= tile.R0 && srcRow < tile.R1
			srcRow = clamp(srcRow, tile.R0, tile.R1-1)
			for j := 0; j < size; j++ {
				srcCol := tile.C0 + j - tile.PadLeft
				colInside := srcCol >= tile.C0 && srcCol < tile.C1
				if mode == PadZero && !(rowInside && colInside) {
					continue
				}
				srcCol = clamp(srcCol, tile.C0, tile.C1-1)
				patch.Data[offset+i*size+j] = channel.At(srcRow, srcCol)
			}
		}
	}
	return patch
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
