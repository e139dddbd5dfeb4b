package ui

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/history"
	"github.com/forest-guardian/wooded-mask/internal/ml"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/properties"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	t.Setenv("HISTORY_DB_PATH", "")
	t.Setenv("MODEL_SERVICE_ADDR", "")
	t.Setenv("MODEL_HTTP_URL", "")
	t.Setenv("MODEL_CHANNELS", "")
	t.Setenv("DISCORD_ERROR_NOTIFICATION_URL", "")
	t.Setenv("DISCORD_SUCCESS_NOTIFICATION_URL", "")
	t.Setenv("DISCORD_WARN_NOTIFICATION_URL", "")
	return root
}

func metadata(h, w int) raster.Metadata {
	return raster.Metadata{
		GeoTransform: [6]float64{500000, 10, 0, 4200000, 0, -10},
		Height:       h,
		Width:        w,
	}
}

// writeHalfWoodedScene writes a 4x4 scene whose left half has NDVI ~0.67.
func writeHalfWoodedScene(t *testing.T, path string) {
	t.Helper()
	bands := make([]raster.Plane, 4)
	for i := range bands {
		bands[i] = raster.NewPlane(4, 4)
		bands[i].Fill(0.1)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 2; c++ {
			bands[features.BandNIR].Set(r, c, 0.5)
		}
	}
	stack, err := raster.NewMultiChannelRaster(bands, []string{"blue", "green", "red", "nir"})
	if err != nil {
		t.Fatal(err)
	}
	if err := planet.WriteFeatures(path, stack, metadata(4, 4)); err != nil {
		t.Fatalf("failed to write scene: %v", err)
	}
}

func TestNewBackendDefaultsToNDVI(t *testing.T) {
	isolate(t)
	backend, err := NewBackend(context.Background(), features.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer backend.Close()

	classifier, ok := backend.Classifier.(ml.NDVIClassifier)
	if !ok {
		t.Fatalf("expected the NDVI classifier, got %T", backend.Classifier)
	}
	if classifier.NDVIChannel != 4 || classifier.Channels != features.DefaultOptions().ChannelCount() {
		t.Errorf("unexpected classifier %+v", classifier)
	}
}

func TestNewBackendNeedsNDVIFeature(t *testing.T) {
	isolate(t)
	if _, err := NewBackend(context.Background(), features.Options{Normalize: true}); err == nil {
		t.Error("expected an error without the NDVI feature")
	}
}

func TestNewBackendHTTP(t *testing.T) {
	isolate(t)
	t.Setenv("MODEL_HTTP_URL", "http://localhost:9/infer")
	t.Setenv("MODEL_CHANNELS", "7")

	backend, err := NewBackend(context.Background(), features.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := backend.Classifier.(*ml.HTTPClassifier); !ok {
		t.Fatalf("expected the HTTP classifier, got %T", backend.Classifier)
	}
	if got := ml.ExpectedChannels(backend.Classifier); got != 7 {
		t.Errorf("expected 7 channels from MODEL_CHANNELS, got %d", got)
	}
}

func TestRunThresholdPublishes(t *testing.T) {
	root := isolate(t)
	imagePath := filepath.Join(root, "20240110_a.tif")
	writeHalfWoodedScene(t, imagePath)

	result, err := RunThreshold(delivery.ThresholdRequest{ImagePath: imagePath})
	if err != nil {
		t.Fatalf("RunThreshold failed: %v", err)
	}
	if result.Counts.Wooded != 8 || result.Counts.NonWooded != 8 {
		t.Errorf("unexpected counts %+v", result.Counts)
	}

	base := strings.TrimSuffix(result.OutputPath, ".tif")
	if !strings.HasPrefix(result.OutputPath, properties.DataPath("result", "20240110_a", "threshold")) {
		t.Errorf("unexpected output location %s", result.OutputPath)
	}
	for _, path := range []string{base + ".png", base + ".geojson"} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to be written: %v", path, err)
		}
	}

	client, err := history.NewSQLiteClient(properties.HistoryDBPath())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	runs, err := client.ListRuns("20240110_a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Method != "ndvi-threshold" || runs[0].Counts != result.Counts {
		t.Errorf("unexpected recorded runs %+v", runs)
	}
	if err := PrintHistory("", 5); err != nil {
		t.Errorf("PrintHistory failed: %v", err)
	}
}

func TestRunPredictWithReference(t *testing.T) {
	root := isolate(t)
	imagePath := filepath.Join(root, "20240110_a.tif")
	writeHalfWoodedScene(t, imagePath)

	reference := raster.NewTernaryMask(4, 4)
	for r := 0; r < 4; r++ {
		reference.Set(r, 0, raster.Wooded)
		reference.Set(r, 1, raster.Wooded)
	}
	if err := planet.WriteTernaryMask(filepath.Join(root, "20240110_a_reference_wooded.tif"), reference, metadata(4, 4)); err != nil {
		t.Fatal(err)
	}

	result, err := RunPredict(context.Background(), delivery.PredictRequest{
		ImagePath: imagePath,
		Features:  features.DefaultOptions(),
		TileSize:  4,
		Quiet:     true,
	})
	if err != nil {
		t.Fatalf("RunPredict failed: %v", err)
	}
	if result.Report == nil || result.Report.Kappa != 1 {
		t.Fatalf("expected perfect agreement with the reference, got %+v", result.Report)
	}
}

func TestRunEvaluateWritesReports(t *testing.T) {
	root := isolate(t)
	pred := raster.NewTernaryMask(1, 4)
	copy(pred.Data, []uint8{1, 1, 0, 0})
	ref := raster.NewTernaryMask(1, 4)
	copy(ref.Data, []uint8{1, 0, 0, 0})
	predPath := filepath.Join(root, "pred.tif")
	refPath := filepath.Join(root, "ref.tif")
	if err := planet.WriteTernaryMask(predPath, pred, metadata(1, 4)); err != nil {
		t.Fatal(err)
	}
	if err := planet.WriteTernaryMask(refPath, ref, metadata(1, 4)); err != nil {
		t.Fatal(err)
	}

	jsonPath := filepath.Join(root, "report.json")
	report, err := RunEvaluate(delivery.EvaluateRequest{PredictedPath: predPath, ReferencePath: refPath}, EvaluateOptions{JSONPath: jsonPath})
	if err != nil {
		t.Fatalf("RunEvaluate failed: %v", err)
	}
	if report.Confusion != (accuracy.ConfusionMatrix{TP: 1, FP: 1, TN: 2}) {
		t.Errorf("unexpected confusion %+v", report.Confusion)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("expected JSON report: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	if decoded["n_valid"] != float64(4) {
		t.Errorf("expected n_valid 4, got %v", decoded["n_valid"])
	}

	reports, _ := filepath.Glob(properties.DataPath("reports", "accuracy_analysis_*.md"))
	if len(reports) != 1 {
		t.Errorf("expected one markdown report, got %v", reports)
	}
}

func TestResolvePath(t *testing.T) {
	root := isolate(t)
	if err := os.MkdirAll(properties.DataPath("input"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(properties.DataPath("input", "scene.tif"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := resolvePath(filepath.Join("input", "scene.tif"))
	if err != nil || got != filepath.Join(root, "data", "input", "scene.tif") {
		t.Errorf("expected the data folder path, got %q (%v)", got, err)
	}
	if _, err := resolvePath("nowhere.tif"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
