package mask

import (
	"errors"
	"math"
	"testing"

	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

func row(values ...float64) raster.Plane {
	return raster.Plane{Height: 1, Width: len(values), Data: values}
}

func TestThresholdBoundaryIsStrict(t *testing.T) {
	prob := row(0.5, 0.50001, 0.49999, 1, 0)
	out, err := Threshold(prob, AllValid(1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []uint8{0, 1, 0, 1, 0}
	for i, v := range expected {
		if out.Data[i] != v {
			t.Errorf("pixel %d: expected %d, got %d", i, v, out.Data[i])
		}
	}
}

func TestThresholdInvalidBecomesNoData(t *testing.T) {
	prob := row(0.9, 0.1)
	validity := raster.ValidityMask{Height: 1, Width: 2, Valid: []bool{false, true}}
	out, _ := Threshold(prob, validity)
	if out.Data[0] != raster.NoDataSentinel || out.Data[1] != raster.NonWooded {
		t.Errorf("unexpected mask %v", out.Data)
	}
}

func TestThresholdShapeMismatch(t *testing.T) {
	_, err := Threshold(row(0.1, 0.2), AllValid(2, 2))
	if !errors.Is(err, raster.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}

func TestThresholdIndex(t *testing.T) {
	ndvi := row(0.41, 0.4, math.NaN(), 0.9)
	validity := raster.ValidityMask{Height: 1, Width: 4, Valid: []bool{true, true, true, false}}
	out, err := ThresholdIndex(ndvi, DefaultNDVIThreshold, validity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []uint8{1, 0, 255, 255}
	for i, v := range expected {
		if out.Data[i] != v {
			t.Errorf("pixel %d: expected %d, got %d", i, v, out.Data[i])
		}
	}
}

func TestValidityConstructors(t *testing.T) {
	quality := FromQuality(row(0, 1, 2, math.NaN()))
	if quality.CountValid() != 2 || quality.Valid[0] || !quality.Valid[2] {
		t.Errorf("unexpected quality mask %v", quality.Valid)
	}

	index := FromIndex(row(0.1, math.NaN(), math.Inf(1), -1))
	if index.CountValid() != 2 || index.Valid[1] || index.Valid[2] {
		t.Errorf("unexpected index mask %v", index.Valid)
	}

	zero := row(0)
	if FromIndex(features.NDVI(zero, zero)).Valid[0] {
		t.Errorf("expected an undefined NDVI pixel to be invalid")
	}

	combined, err := Combine(quality, index)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.CountValid() != 0 {
		t.Errorf("expected no pixel valid in both, got %v", combined.Valid)
	}
	if _, err := Combine(quality, AllValid(2, 2)); err == nil {
		t.Errorf("expected error for mismatched masks")
	}
}
