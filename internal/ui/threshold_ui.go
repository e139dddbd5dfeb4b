package ui

import (
	"fmt"
	"path/filepath"

	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/mask"
)

// RunThreshold produces the NDVI threshold mask for one scene.
func RunThreshold(req delivery.ThresholdRequest) (*delivery.ThresholdResult, error) {
	if req.OutputPath == "" {
		scene := delivery.SceneID(req.ImagePath)
		dir, err := CreateResultDirectory(scene, "threshold")
		if err != nil {
			return nil, err
		}
		req.OutputPath = filepath.Join(dir, scene+"_ndvi_wooded.tif")
	}

	result, err := delivery.ThresholdScene(req)
	if err != nil {
		return nil, err
	}

	printMaskSummary(result.SceneID, result.Counts, result.Area)
	previewPath, geojsonPath := publishMask(maskOutput{
		SceneID:  result.SceneID,
		Method:   "ndvi-threshold",
		MaskPath: result.OutputPath,
		Mask:     result.Mask,
		Metadata: result.Metadata,
		Counts:   result.Counts,
		Area:     result.Area,
	})

	message := fmt.Sprintf("NDVI threshold mask created!\nScene: %s\nWooded area: %s\nMask located at: %s\nPreview located at: %s\nFootprint located at: %s",
		result.SceneID, result.Area, result.OutputPath, previewPath, geojsonPath)
	PrintSuccess(message)
	notifySuccess(message)
	return result, nil
}

// ThresholdMask handles the UI for the model-free NDVI threshold mask
func ThresholdMask() {
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
	threshold, err := ReadFloat(fmt.Sprintf("Enter the NDVI threshold [%.2f]: ", mask.DefaultNDVIThreshold), mask.DefaultNDVIThreshold)
	if err != nil {
		PrintError(err.Error())
		return
	}

	if _, err := RunThreshold(delivery.ThresholdRequest{
		ImagePath:   imagePath,
		QualityPath: qualityPath,
		Threshold:   &threshold,
	}); err != nil {
		reportError("creating threshold mask", err)
	}
}
