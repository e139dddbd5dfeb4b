package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/history"
	"github.com/forest-guardian/wooded-mask/internal/mask"
	"github.com/forest-guardian/wooded-mask/internal/ml"
	"github.com/forest-guardian/wooded-mask/internal/notification"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/properties"
	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/output"
)

// Backend is the classifier selected for a run.
type Backend struct {
	Name       string
	Classifier ml.Classifier
	close      func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// NewBackend selects the classifier from the environment: MODEL_SERVICE_ADDR
// (gRPC) first, then MODEL_HTTP_URL, then the built-in NDVI model.
func NewBackend(ctx context.Context, options features.Options) (*Backend, error) {
	channels := properties.ModelChannels()
	if channels == 0 {
		channels = options.ChannelCount()
	}

	if addr := properties.ModelServiceAddr(); addr != "" {
		client, err := ml.NewGRPCClassifier(addr, channels)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: "grpc " + addr, Classifier: client, close: client.Close}, nil
	}
	if url := properties.ModelHTTPURL(); url != "" {
		auth := ml.OAuthConfig{
			ClientID:     properties.ModelClientID(),
			ClientSecret: properties.ModelClientSecret(),
			TokenURL:     properties.ModelTokenURL(),
		}
		return &Backend{Name: "http " + url, Classifier: ml.NewHTTPClassifier(ctx, url, channels, auth)}, nil
	}

	ndviChannel, err := NDVIChannel(options)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Name: "ndvi",
		Classifier: ml.NDVIClassifier{
			Channels:    options.ChannelCount(),
			NDVIChannel: ndviChannel,
			Threshold:   mask.DefaultNDVIThreshold,
		},
	}, nil
}

// NDVIChannel is the position of the rescaled NDVI feature in the stack.
func NDVIChannel(options features.Options) (int, error) {
	if !options.IncludeNDVI {
		return 0, errors.New("the built-in model needs the NDVI feature; enable it or configure MODEL_SERVICE_ADDR / MODEL_HTTP_URL")
	}
	return features.BandNIR + 1, nil
}

// maskOutput describes a written mask for previews, footprint and history.
type maskOutput struct {
	SceneID  string
	Method   string
	MaskPath string
	Mask     raster.TernaryMask
	Metadata raster.Metadata
	Counts   raster.MaskCounts
	Area     delivery.WoodedArea
	Report   *accuracy.Report
}

// publishMask writes the PNG preview and footprint GeoJSON next to the mask
// and records the run. Failures here are reported but never fail the run.
func publishMask(out maskOutput) (string, string) {
	base := strings.TrimSuffix(out.MaskPath, filepath.Ext(out.MaskPath))

	previewPath, err := output.CreateMaskPreview(out.Mask, base)
	if err != nil {
		PrintWarning(fmt.Sprintf("failed to create mask preview: %v", err))
		previewPath = ""
	}

	summary := output.FootprintSummary{
		Scene:        out.SceneID,
		Method:       out.Method,
		Counts:       out.Counts,
		WoodedAreaM2: out.Area.SquareMetres(),
	}
	if out.Report != nil {
		kappa := out.Report.Kappa
		summary.Kappa = &kappa
	}
	var geojsonPath string
	corners, err := planet.Footprint(out.Metadata)
	if err == nil {
		geojsonPath, err = output.CreateFootprintGeoJSON(corners, summary, base+".geojson")
	}
	if err != nil {
		PrintWarning(fmt.Sprintf("failed to create footprint GeoJSON: %v", err))
		geojsonPath = ""
	}

	recordRun(out)
	return previewPath, geojsonPath
}

func recordRun(out maskOutput) {
	client, err := history.NewSQLiteClient(properties.HistoryDBPath())
	if err != nil {
		PrintWarning(fmt.Sprintf("failed to open run history: %v", err))
		return
	}
	defer client.Close()

	run := history.Run{
		Scene:     out.SceneID,
		Method:    out.Method,
		Output:    out.MaskPath,
		Counts:    out.Counts,
		CreatedAt: time.Now(),
	}
	if out.Report != nil {
		acc, kappa := out.Report.Accuracy, out.Report.Kappa
		run.Accuracy, run.Kappa = &acc, &kappa
	}
	if _, err := client.RecordRun(run); err != nil {
		PrintWarning(fmt.Sprintf("failed to record run: %v", err))
	}
}

func printMaskSummary(sceneID string, counts raster.MaskCounts, area delivery.WoodedArea) {
	fmt.Printf("\n%sScene %s%s\n", ColorGreen, sceneID, ColorReset)
	fmt.Printf("%s- Wooded pixels: %d%s\n", ColorGreen, counts.Wooded, ColorReset)
	fmt.Printf("%s- Non-wooded pixels: %d%s\n", ColorGreen, counts.NonWooded, ColorReset)
	fmt.Printf("%s- NoData pixels: %d%s\n", ColorGreen, counts.NoData, ColorReset)
	fmt.Printf("%s- Wooded area: %s%s\n", ColorGreen, area, ColorReset)
}

// reportError prints err and forwards it to Discord. Missing inputs are user
// mistakes and are not forwarded.
func reportError(action string, err error) {
	PrintError(fmt.Sprintf("Error %s: %s", action, err.Error()))
	if errors.Is(err, raster.ErrInputNotFound) {
		return
	}
	if notifyErr := notification.SendDiscordErrorNotification(fmt.Sprintf("Wooded mask CLI\n\nError %s: %s", action, err.Error())); notifyErr != nil {
		fmt.Printf("%sFailed to send notification: %s%s\n", ColorRed, notifyErr.Error(), ColorReset)
	}
}

func notifySuccess(message string) {
	if err := notification.SendDiscordSuccessNotification("Wooded mask CLI\n\n" + message); err != nil {
		fmt.Printf("%sFailed to send notification: %s%s\n", ColorRed, err.Error(), ColorReset)
	}
}

func notifyWarn(message string) {
	if err := notification.SendDiscordWarnNotification("Wooded mask CLI\n\n" + message); err != nil {
		fmt.Printf("%sFailed to send notification: %s%s\n", ColorRed, err.Error(), ColorReset)
	}
}
