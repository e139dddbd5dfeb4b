package reconstruct

import (
	"errors"
	"math"
	"testing"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
)

func constant(size int, v float64) raster.Plane {
	p := raster.NewPlane(size, size)
	p.Fill(v)
	return p
}

func TestNonOverlappingTilesKeepRawOutput(t *testing.T) {
	s, _ := tiling.NewScheduler(8, 8, 4, 4)
	acc := NewAccumulator(8, 8)
	for tile := range s.Tiles() {
		p := raster.NewPlane(4, 4)
		for i := range p.Data {
			p.Data[i] = float64(tile.Row*10 + tile.Col + i)
		}
		if err := acc.Add(tile, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	coverage := acc.Coverage()
	for i, c := range coverage.Data {
		if c != 1 {
			t.Fatalf("pixel %d covered %v times, expected 1", i, c)
		}
	}
	out := acc.Normalize()
	// pixel (5, 6) lies in tile (4, 4) at offset (1, 2)
	if expected := float64(4*10 + 4 + 1*4 + 2); out.At(5, 6) != expected {
		t.Errorf("expected %f, got %f", expected, out.At(5, 6))
	}
}

func TestOverlapAveragingPreservesConstant(t *testing.T) {
	s, _ := tiling.NewScheduler(10, 10, 8, 0)
	acc := NewAccumulator(10, 10)
	for tile := range s.Tiles() {
		if err := acc.Add(tile, constant(8, 0.7)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	coverage := acc.Coverage()
	if coverage.At(0, 0) != 1 || coverage.At(5, 5) != 4 {
		t.Errorf("unexpected coverage %v at corner, %v at centre", coverage.At(0, 0), coverage.At(5, 5))
	}
	for i, v := range acc.Normalize().Data {
		if math.Abs(v-0.7) > 1e-12 {
			t.Fatalf("pixel %d = %f, expected 0.7", i, v)
		}
	}
}

func TestUncoveredPixelsStayZero(t *testing.T) {
	acc := NewAccumulator(4, 4)
	s, _ := tiling.NewScheduler(4, 4, 2, 2)
	acc.Add(s.TileAt(0, 0), constant(2, 1))

	out := acc.Normalize()
	if out.At(0, 0) != 1 || out.At(3, 3) != 0 {
		t.Errorf("unexpected values %f %f", out.At(0, 0), out.At(3, 3))
	}
}

func TestAddRejectsUndersizedPrediction(t *testing.T) {
	acc := NewAccumulator(8, 8)
	s, _ := tiling.NewScheduler(8, 8, 4, 4)
	err := acc.Add(s.TileAt(0, 0), constant(2, 1))
	if !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}

func TestAddRejectsTileOutsideMap(t *testing.T) {
	s, _ := tiling.NewScheduler(8, 8, 4, 4)
	acc := NewAccumulator(6, 6)
	var err error
	for tile := range s.Tiles() {
		if err = acc.Add(tile, constant(4, 1)); err != nil {
			break
		}
	}
	if !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for a tile past the map edge, got %v", err)
	}
}
