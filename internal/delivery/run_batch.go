package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/ml"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// ManifestRow lists one scene of a batch. Empty Quality and Reference fields
// fall back to files detected next to the image.
type ManifestRow struct {
	SceneID   string `csv:"scene_id"`
	Image     string `csv:"image"`
	Quality   string `csv:"udm"`
	Reference string `csv:"reference"`
}

func ReadManifest(path string) ([]ManifestRow, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var rows []ManifestRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling CSV: %w", err)
	}
	for i := range rows {
		if rows[i].SceneID == "" {
			rows[i].SceneID = SceneID(rows[i].Image)
		}
	}
	return rows, nil
}

type BatchRequest struct {
	ManifestPath string
	OutputDir    string
	Workers      int
	// Template supplies tiling and feature settings; paths are filled per scene.
	Template PredictRequest
}

type BatchResult struct {
	Scenes      []*PredictResult
	Rows        []accuracy.MetricsRow
	MetricsPath string
	Failed      int
	Pooled      accuracy.Report
	MeanKappa   float64
	StdKappa    float64
}

// RunBatch predicts every manifest scene on a worker pool. A failing scene is
// logged and recorded as skipped; the batch fails only when every scene does.
func RunBatch(ctx context.Context, classifier ml.Classifier, req BatchRequest) (*BatchResult, error) {
	start := time.Now()
	rows, err := ReadManifest(req.ManifestPath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: manifest %s lists no scenes", raster.ErrEmptyDataset, req.ManifestPath)
	}
	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu          sync.Mutex
		result      = &BatchResult{}
		metricsRows = make([]accuracy.MetricsRow, len(rows))
		progressBar = progressbar.Default(int64(len(rows)), "Predicting scenes")
	)

	wp := workerpool.New(workers)
	for i, row := range rows {
		wp.Submit(func() {
			scene, err := predictManifestRow(ctx, classifier, req, row)

			mu.Lock()
			defer mu.Unlock()
			progressBar.Add(1)
			if err != nil {
				fmt.Printf("\nWarning: skipping scene %s: %v\n", row.SceneID, err)
				result.Failed++
				metricsRows[i] = accuracy.MetricsRow{SceneID: row.SceneID, Status: "skipped", Error: err.Error()}
				return
			}
			result.Scenes = append(result.Scenes, scene)
			if scene.Report != nil {
				metricsRows[i] = accuracy.NewMetricsRow(row.SceneID, *scene.Report)
			} else {
				metricsRows[i] = accuracy.MetricsRow{SceneID: row.SceneID, Status: "no_reference"}
			}
		})
	}
	wp.StopWait()
	progressBar.Finish()

	result.Rows = metricsRows
	if result.Failed == len(rows) {
		return result, errors.New("every scene in the batch failed")
	}

	result.Pooled = accuracy.Pooled(metricsRows)
	var kappas []float64
	for _, row := range metricsRows {
		if row.Status == "ok" {
			kappas = append(kappas, row.Kappa)
		}
	}
	if len(kappas) > 0 {
		result.MeanKappa, result.StdKappa = stat.PopMeanStdDev(kappas, nil)
	}

	result.MetricsPath = filepath.Join(req.OutputDir, "metrics.csv")
	if err := accuracy.WriteMetricsCSV(result.MetricsPath, metricsRows); err != nil {
		return result, err
	}
	step("RunBatch", start)
	return result, nil
}

func predictManifestRow(ctx context.Context, classifier ml.Classifier, req BatchRequest, row ManifestRow) (*PredictResult, error) {
	if row.Image == "" {
		return nil, fmt.Errorf("%w: manifest row has no image", raster.ErrInputNotFound)
	}
	if err := checkFile(row.Image); err != nil {
		return nil, err
	}

	scene := req.Template
	scene.ImagePath = row.Image
	scene.QualityPath = row.Quality
	if scene.QualityPath == "" {
		scene.QualityPath, _ = QualityFor(row.Image)
	}
	scene.ReferencePath = row.Reference
	scene.OutputPath = filepath.Join(req.OutputDir, row.SceneID+"_wooded.tif")
	scene.ProbabilityPath = ""
	scene.Quiet = true
	return PredictScene(ctx, classifier, scene)
}
