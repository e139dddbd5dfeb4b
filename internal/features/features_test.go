package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

func plane(values ...float64) raster.Plane {
	return raster.Plane{Height: 1, Width: len(values), Data: values}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIndicesAtEqualRedAndNIR(t *testing.T) {
	red := plane(0.3, 0.6)
	nir := plane(0.3, 0.6)

	for name, index := range map[string]raster.Plane{
		"ndvi": NDVI(red, nir),
		"savi": SAVI(red, nir, SAVISoilFactor),
	} {
		for i, v := range index.Data {
			if !almostEqual(v, 0) {
				t.Errorf("%s[%d] = %f, expected 0", name, i, v)
			}
		}
		for i, v := range RescaleIndex(index).Data {
			if !almostEqual(v, 0.5) {
				t.Errorf("rescaled %s[%d] = %f, expected 0.5", name, i, v)
			}
		}
	}
}

func TestIndicesUndefinedDenominator(t *testing.T) {
	zero := plane(0)

	cases := map[string]raster.Plane{
		"ndvi": NDVI(zero, zero),
		"ndwi": NDWI(zero, zero),
		// NIR + 6R - 7.5B + 1 == 0 for NIR = -1, B = R = 0
		"evi": EVI(zero, zero, plane(-1)),
		// NIR + R + L == 0 for R = -0.5
		"savi": SAVI(plane(-0.5), zero, SAVISoilFactor),
	}
	for name, index := range cases {
		if !math.IsNaN(index.Data[0]) {
			t.Errorf("%s: expected NaN for a zero denominator, got %f", name, index.Data[0])
		}
		if got := RescaleIndex(index).Data[0]; got != 0 {
			t.Errorf("%s: expected fallback 0 after rescale, got %f", name, got)
		}
	}
}

func TestIndexFormulas(t *testing.T) {
	blue, green, red, nir := plane(0.1), plane(0.2), plane(0.1), plane(0.5)

	if got := NDVI(red, nir).Data[0]; !almostEqual(got, 0.4/0.6) {
		t.Errorf("ndvi = %f", got)
	}
	if got := EVI(blue, red, nir).Data[0]; !almostEqual(got, 2.5*0.4/(0.5+0.6-0.75+1)) {
		t.Errorf("evi = %f", got)
	}
	if got := SAVI(red, nir, 0.5).Data[0]; !almostEqual(got, 0.4/1.1*1.5) {
		t.Errorf("savi = %f", got)
	}
	if got := NDWI(green, nir).Data[0]; !almostEqual(got, -0.3/0.7) {
		t.Errorf("ndwi = %f", got)
	}
}

func TestRescaleIndexClips(t *testing.T) {
	got := RescaleIndex(plane(-3, -1, 1, 4, math.Inf(1), math.Inf(-1))).Data
	expected := []float64{0, 0, 1, 1, 1, 0}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("rescale[%d] = %f, expected %f", i, got[i], expected[i])
		}
	}
}

func TestNanPercentilesLinearInterpolation(t *testing.T) {
	values := []float64{math.NaN()}
	for i := 0; i <= 100; i++ {
		values = append(values, float64(i))
	}
	got, ok := NanPercentiles(values, 1, 50, 99)
	if !ok {
		t.Fatalf("expected percentiles")
	}
	for i, expected := range []float64{1, 50, 99} {
		if !almostEqual(got[i], expected) {
			t.Errorf("percentile %d = %f, expected %f", i, got[i], expected)
		}
	}

	got, _ = NanPercentiles([]float64{0, 10}, 25)
	if !almostEqual(got[0], 2.5) {
		t.Errorf("expected 2.5, got %f", got[0])
	}

	if _, ok := NanPercentiles([]float64{math.NaN()}, 50); ok {
		t.Errorf("expected no percentile for an all-NaN input")
	}
}

func TestNormalizeBand(t *testing.T) {
	values := make([]float64, 0, 102)
	for i := 0; i <= 100; i++ {
		values = append(values, float64(i*10))
	}
	values = append(values, math.NaN())
	out := NormalizeBand(plane(values...))

	if out.Data[0] != 0 || out.Data[100] != 1 {
		t.Errorf("expected stretched extremes 0 and 1, got %f and %f", out.Data[0], out.Data[100])
	}
	if !almostEqual(out.Data[50], 0.5) {
		t.Errorf("expected midpoint 0.5, got %f", out.Data[50])
	}
	if !math.IsNaN(out.Data[101]) {
		t.Errorf("expected NaN to survive normalization")
	}
}

func TestNormalizeConstantBandOnlyClips(t *testing.T) {
	out := NormalizeBand(plane(3, 3, 3))
	for _, v := range out.Data {
		if v != 1 {
			t.Fatalf("expected constant band clipped to 1, got %v", out.Data)
		}
	}
	out = NormalizeBand(plane(0.25, 0.25))
	if out.Data[0] != 0.25 {
		t.Errorf("expected in-range constant value untouched, got %f", out.Data[0])
	}
}

func testImage(t *testing.T, channels int) *raster.MultiChannelRaster {
	t.Helper()
	planes := make([]raster.Plane, channels)
	for c := range planes {
		planes[c] = raster.NewPlane(2, 2)
		planes[c].Fill(float64(c+1) * 0.1)
	}
	image, err := raster.NewMultiChannelRaster(planes, nil)
	if err != nil {
		t.Fatalf("failed to build image: %v", err)
	}
	return image
}

func TestComputeRejectsFewerThanFourBands(t *testing.T) {
	_, err := Compute(testImage(t, 3), DefaultOptions())
	if !errors.Is(err, raster.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestComputeDropsExtraBandsAndOrdersIndices(t *testing.T) {
	options := Options{IncludeNDVI: true, IncludeEVI: true, IncludeSAVI: true, IncludeNDWI: true}
	result, err := Compute(testImage(t, 6), options)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"blue", "green", "red", "nir", "ndvi", "evi", "savi", "ndwi"}
	if result.Features.ChannelCount() != len(expected) || options.ChannelCount() != len(expected) {
		t.Fatalf("expected %d channels, got %d", len(expected), result.Features.ChannelCount())
	}
	for i, name := range expected {
		if result.Features.Names[i] != name {
			t.Errorf("channel %d = %s, expected %s", i, result.Features.Names[i], name)
		}
	}

	// red = 0.3, nir = 0.4 without normalization
	ndvi, _ := result.Features.Channel("ndvi")
	if !almostEqual(ndvi.At(0, 0), (0.1/0.7+1)/2) {
		t.Errorf("unexpected rescaled ndvi %f", ndvi.At(0, 0))
	}
	if !almostEqual(result.RawNDVI.At(1, 1), 0.1/0.7) {
		t.Errorf("unexpected raw ndvi %f", result.RawNDVI.At(1, 1))
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	image := testImage(t, 4)
	if _, err := Compute(image, DefaultOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if image.Channels[3].At(0, 0) != 0.4 {
		t.Errorf("input raster was modified")
	}
}

func TestComputeTemporal(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	scenes := map[time.Time]raster.Plane{
		jan: plane(0.2, math.NaN(), 0.6),
		feb: plane(0.6, math.NaN(), 0.2),
		feb.AddDate(0, 0, 1): raster.NewPlane(2, 2),
	}

	stack, err := ComputeTemporal(scenes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mean, _ := stack.Channel("mean_ndvi")
	maxNDVI, _ := stack.Channel("max_ndvi")
	minNDVI, _ := stack.Channel("min_ndvi")
	std, _ := stack.Channel("std_ndvi")
	doy, _ := stack.Channel("doy_max_ndvi")

	if !almostEqual(mean.Data[0], 0.7) || !almostEqual(maxNDVI.Data[0], 0.8) || !almostEqual(minNDVI.Data[0], 0.6) {
		t.Errorf("unexpected mean/max/min: %f %f %f", mean.Data[0], maxNDVI.Data[0], minNDVI.Data[0])
	}
	if !almostEqual(std.Data[0], 0.1) {
		t.Errorf("expected population std 0.2 halved to 0.1, got %f", std.Data[0])
	}
	if !almostEqual(doy.Data[0], 32.0/365.0) || !almostEqual(doy.Data[2], 10.0/365.0) {
		t.Errorf("unexpected day of max: %f %f", doy.Data[0], doy.Data[2])
	}
	if mean.Data[1] != 0 || doy.Data[1] != 0 {
		t.Errorf("expected all-NaN pixel to fall back to 0, got %f %f", mean.Data[1], doy.Data[1])
	}
}

func TestComputeTemporalEmpty(t *testing.T) {
	if _, err := ComputeTemporal(nil); !errors.Is(err, raster.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}
