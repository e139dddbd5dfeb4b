package ui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
)

// RunPredict produces the model mask for one scene, then writes its preview
// and footprint and records the run.
func RunPredict(ctx context.Context, req delivery.PredictRequest) (*delivery.PredictResult, error) {
	backend, err := NewBackend(ctx, req.Features)
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	fmt.Printf("Using classifier: %s\n", backend.Name)

	if req.OutputPath == "" {
		dir, err := CreateResultDirectory(delivery.SceneID(req.ImagePath), "model")
		if err != nil {
			return nil, err
		}
		req.OutputPath = filepath.Join(dir, delivery.SceneID(req.ImagePath)+"_wooded.tif")
	}

	result, err := delivery.PredictScene(ctx, backend.Classifier, req)
	if err != nil {
		return nil, err
	}

	printMaskSummary(result.SceneID, result.Counts, result.Area)
	if result.Report != nil {
		fmt.Printf("\nAccuracy against %s\n", result.ReferencePath)
		fmt.Print(accuracy.FormatReport(*result.Report))
	}
	previewPath, geojsonPath := publishMask(maskOutput{
		SceneID:  result.SceneID,
		Method:   "model",
		MaskPath: result.OutputPath,
		Mask:     result.Mask,
		Metadata: result.Metadata,
		Counts:   result.Counts,
		Area:     result.Area,
		Report:   result.Report,
	})

	message := fmt.Sprintf("Successful analysis!\nScene: %s\nWooded area: %s\nMask located at: %s\nPreview located at: %s\nFootprint located at: %s",
		result.SceneID, result.Area, result.OutputPath, previewPath, geojsonPath)
	if result.Report != nil {
		message += fmt.Sprintf("\nKappa: %.4f (%d valid pixels)", result.Report.Kappa, result.Report.NValid)
	}
	PrintSuccess(message)
	notifySuccess(message)
	return result, nil
}

// PredictMask handles the UI for producing a model mask for one scene
func PredictMask() {
	PrintWarning("- The image should be a 4-band PlanetScope analytic GeoTIFF (B, G, R, NIR).\n- A '<scene>_3B_udm2.tif' quality mask and a '<scene>_reference_wooded.tif' reference next to the image are picked up automatically.")

	imagePath, err := ReadPath("Enter the image path: ")
	if err != nil {
		PrintError(err.Error())
		return
	}
	qualityPath, err := ReadOptionalPath("Enter the quality mask path (empty to auto-detect): ")
	if err != nil {
		PrintError(err.Error())
		return
	}
	if qualityPath == "" {
		qualityPath, _ = delivery.QualityFor(imagePath)
	}
	tileSize, err := ReadInt(fmt.Sprintf("Enter the tile size [%d]: ", delivery.DefaultTileSize), delivery.DefaultTileSize, 1, 4096)
	if err != nil {
		PrintError(err.Error())
		return
	}
	stride, err := ReadInt(fmt.Sprintf("Enter the stride [%d]: ", tiling.DefaultStride(tileSize)), 0, 1, tileSize)
	if err != nil {
		PrintError(err.Error())
		return
	}

	_, err = RunPredict(context.Background(), delivery.PredictRequest{
		ImagePath:   imagePath,
		QualityPath: qualityPath,
		Features:    features.DefaultOptions(),
		TileSize:    tileSize,
		Stride:      stride,
	})
	if err != nil {
		reportError("predicting mask", err)
	}
}
