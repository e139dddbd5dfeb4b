package ui

import (
	"context"
	"fmt"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/properties"
)

// RunBatch predicts every scene of a manifest and reports pooled metrics.
func RunBatch(ctx context.Context, req delivery.BatchRequest) (*delivery.BatchResult, error) {
	backend, err := NewBackend(ctx, req.Template.Features)
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	fmt.Printf("Using classifier: %s\n", backend.Name)

	if req.OutputDir == "" {
		req.OutputDir = properties.DataPath("result", "batch")
	}
	result, err := delivery.RunBatch(ctx, backend.Classifier, req)
	if err != nil {
		return result, err
	}

	for _, scene := range result.Scenes {
		publishMask(maskOutput{
			SceneID:  scene.SceneID,
			Method:   "model",
			MaskPath: scene.OutputPath,
			Mask:     scene.Mask,
			Metadata: scene.Metadata,
			Counts:   scene.Counts,
			Area:     scene.Area,
			Report:   scene.Report,
		})
	}

	fmt.Printf("\n%sBatch finished: %d scenes, %d skipped%s\n", ColorGreen, len(result.Scenes), result.Failed, ColorReset)
	fmt.Printf("Metrics written to %s\n", result.MetricsPath)
	message := fmt.Sprintf("Batch finished!\n\n- Scenes: %d\n- Skipped: %d\n- Metrics: %s",
		len(result.Scenes), result.Failed, result.MetricsPath)
	if result.Pooled.NValid > 0 {
		fmt.Println("\nPooled accuracy over scenes with a reference")
		fmt.Print(accuracy.FormatReport(result.Pooled))
		fmt.Printf("Per-scene kappa: mean %.4f, std %.4f\n", result.MeanKappa, result.StdKappa)
		message += fmt.Sprintf("\n- Pooled kappa: %.4f\n- Mean kappa: %.4f ± %.4f", result.Pooled.Kappa, result.MeanKappa, result.StdKappa)
	}
	if result.Failed > 0 {
		notifyWarn(fmt.Sprintf("%d of %d scenes were skipped; see %s", result.Failed, len(result.Rows), result.MetricsPath))
	}
	notifySuccess(message)
	return result, nil
}

// BatchPredict handles the UI for predicting every scene of a manifest
func BatchPredict() {
	PrintWarning("The manifest is a CSV with the columns scene_id,image,udm,reference.\nEmpty udm and reference columns fall back to files next to each image.")

	manifest, err := ReadPath("Enter the manifest path: ")
	if err != nil {
		PrintError(err.Error())
		return
	}
	outputDir := ReadString("Enter the output folder (empty for data/result/batch): ")
	workers, err := ReadInt("Enter the number of workers [2]: ", 2, 1, 64)
	if err != nil {
		PrintError(err.Error())
		return
	}

	if _, err := RunBatch(context.Background(), delivery.BatchRequest{
		ManifestPath: manifest,
		OutputDir:    outputDir,
		Workers:      workers,
		Template:     delivery.PredictRequest{Features: features.DefaultOptions()},
	}); err != nil {
		reportError("running batch", err)
	}
}
