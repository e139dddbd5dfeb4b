package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/wooded-mask/internal/delivery"
)

// RunTemporal writes the NDVI time-series feature stack for a set of scenes.
func RunTemporal(ctx context.Context, req delivery.TemporalRequest) (*delivery.TemporalResult, error) {
	result, err := delivery.ComputeTemporal(ctx, req)
	if err != nil {
		return nil, err
	}

	first, last := result.Dates[0], result.Dates[len(result.Dates)-1]
	message := fmt.Sprintf("Temporal features created!\nDates: %d (%s to %s)\nSkipped scenes: %d\nFeatures located at: %s",
		len(result.Dates), first.Format("2006-01-02"), last.Format("2006-01-02"), len(result.Skipped), result.OutputPath)
	if len(result.Previews) > 0 {
		message += fmt.Sprintf("\nNDVI previews located at: %s", filepath.Dir(result.Previews[0]))
	}
	if result.Timelapse != "" {
		message += fmt.Sprintf("\nNDVI timelapse: %s", result.Timelapse)
	}
	PrintSuccess(message)
	if len(result.Skipped) > 0 {
		notifyWarn(fmt.Sprintf("Temporal features skipped %d scenes: %s", len(result.Skipped), strings.Join(result.Skipped, ", ")))
	}
	notifySuccess(message)
	return result, nil
}

// TemporalFeatures handles the UI for computing NDVI time-series features
// from a folder of dated scenes
func TemporalFeatures() {
	PrintWarning("- Image file names must start with the acquisition date (YYYYMMDD).\n- All scenes must share the same grid.")

	folder := ReadString("Enter the folder with the scenes: ")
	entries, err := os.ReadDir(folder)
	if err != nil {
		PrintError(fmt.Sprintf("Error reading image folder: %s", err.Error()))
		return
	}
	var images []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".tif") {
			continue
		}
		if strings.Contains(name, "_udm2") || strings.Contains(name, "_reference_wooded") {
			continue
		}
		images = append(images, filepath.Join(folder, name))
	}
	if len(images) == 0 {
		PrintError("No tiff images found in the folder")
		return
	}

	dir, err := CreateResultDirectory(filepath.Base(filepath.Clean(folder)), "temporal")
	if err != nil {
		PrintError(err.Error())
		return
	}
	req := delivery.TemporalRequest{
		ImagePaths: images,
		OutputPath: filepath.Join(dir, "temporal_features.tif"),
	}
	if ReadYesNo("Create NDVI previews and a timelapse? (y/N): ", false) {
		req.PreviewDir = filepath.Join(dir, "previews")
	}

	if _, err := RunTemporal(context.Background(), req); err != nil {
		reportError("computing temporal features", err)
	}
}
