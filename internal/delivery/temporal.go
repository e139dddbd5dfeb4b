package delivery

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
	"github.com/forest-guardian/wooded-mask/output"
)

type TemporalRequest struct {
	ImagePaths []string
	OutputPath string
	// PreviewDir, when set, receives one NDVI preview PNG per date and an
	// ndvi_timelapse.avi joining them.
	PreviewDir string
}

type TemporalResult struct {
	OutputPath string
	Dates      []time.Time
	Skipped    []string
	Previews   []string
	Timelapse  string
}

type temporalScene struct {
	ndvi raster.Plane
	meta raster.Metadata
}

// loadNDVI reads one scene, computes raw NDVI from its red and NIR bands and
// blanks quality-masked pixels to NaN.
func loadNDVI(imagePath string) (temporalScene, error) {
	image, meta, err := planet.ReadImage(imagePath)
	if err != nil {
		return temporalScene{}, err
	}
	if image.ChannelCount() <= features.BandNIR {
		return temporalScene{}, fmt.Errorf("%w: expected at least %d bands, got %d", raster.ErrShapeMismatch, features.BandNIR+1, image.ChannelCount())
	}
	ndvi := features.NDVI(image.Channels[features.BandRed], image.Channels[features.BandNIR])
	if qualityPath, ok := QualityFor(imagePath); ok {
		validity, err := loadValidity(qualityPath, meta.Height, meta.Width)
		if err != nil {
			return temporalScene{}, err
		}
		for i, valid := range validity.Valid {
			if !valid {
				ndvi.Data[i] = math.NaN()
			}
		}
	}
	return temporalScene{ndvi: ndvi, meta: meta}, nil
}

func loadDatedScene(sceneID, imagePath string) (time.Time, temporalScene, error) {
	date, err := SceneDate(sceneID)
	if err != nil {
		return time.Time{}, temporalScene{}, err
	}
	scene, err := loadNDVI(imagePath)
	return date, scene, err
}

// ComputeTemporal loads every scene concurrently, reduces the NDVI time
// series and writes the five temporal feature bands as one GeoTIFF. Scenes
// that fail to load or carry no date are skipped.
func ComputeTemporal(ctx context.Context, req TemporalRequest) (*TemporalResult, error) {
	start := time.Now()
	result := &TemporalResult{OutputPath: req.OutputPath}

	var (
		mu     sync.Mutex
		scenes = make(map[time.Time]temporalScene)
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, imagePath := range req.ImagePaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sceneID := SceneID(imagePath)
			date, scene, err := loadDatedScene(sceneID, imagePath)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				if _, dup := scenes[date]; dup {
					err = fmt.Errorf("another scene already covers %s", date.Format("2006-01-02"))
				} else {
					scenes[date] = scene
					return nil
				}
			}
			fmt.Printf("Warning: skipping %s: %v\n", sceneID, err)
			result.Skipped = append(result.Skipped, sceneID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes loaded successfully", raster.ErrEmptyDataset)
	}

	dates := utils.GetSortedKeys(scenes, true)
	ndviByDate := make(map[time.Time]raster.Plane, len(scenes))
	for date, scene := range scenes {
		ndviByDate[date] = scene.ndvi
	}
	stack, err := features.ComputeTemporal(ndviByDate)
	if err != nil {
		return nil, err
	}
	result.Dates = dates

	meta := scenes[dates[0]].meta
	if err := planet.WriteFeatures(req.OutputPath, stack, meta); err != nil {
		return nil, err
	}

	if req.PreviewDir != "" {
		for _, date := range dates {
			preview := filepath.Join(req.PreviewDir, "ndvi_"+date.Format("2006-01-02"))
			path, err := output.CreateIndexPreview(features.RescaleIndex(scenes[date].ndvi), preview)
			if err != nil {
				return nil, err
			}
			result.Previews = append(result.Previews, path)
		}
		video, err := output.CreateTimelapse(result.Previews, filepath.Join(req.PreviewDir, "ndvi_timelapse"))
		if err != nil {
			return nil, err
		}
		result.Timelapse = video
	}

	step("ComputeTemporal", start)
	return result, nil
}
