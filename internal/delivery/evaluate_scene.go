package delivery

import (
	"errors"
	"fmt"
	"os"

	"github.com/forest-guardian/wooded-mask/internal/accuracy"
	"github.com/forest-guardian/wooded-mask/internal/cache"
	"github.com/forest-guardian/wooded-mask/internal/planet"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", raster.ErrInputNotFound, path)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", raster.ErrInputNotFound, path)
	}
	return nil
}

type EvaluateRequest struct {
	PredictedPath string
	ReferencePath string
	// PredNoData overrides the nodata value declared in the predicted file.
	PredNoData *float64
	// RefNoData overrides the nodata value declared in the reference file.
	RefNoData *float64
}

// EvaluateScene compares a predicted mask file with a reference mask file.
// With a non-nil reportCache, results are reused until either file changes.
func EvaluateScene(req EvaluateRequest, reportCache *cache.FileCache[accuracy.Report]) (accuracy.Report, error) {
	for _, path := range []string{req.PredictedPath, req.ReferencePath} {
		if err := checkFile(path); err != nil {
			return accuracy.Report{}, err
		}
	}

	var key string
	if reportCache != nil {
		var err error
		key, err = reportCache.FileKey([]any{noDataKey(req.PredNoData), noDataKey(req.RefNoData)}, req.PredictedPath, req.ReferencePath)
		if err == nil {
			if report, ok := reportCache.Get(key); ok {
				fmt.Println("Using cached accuracy report")
				return report, nil
			}
		}
	}

	pred, _, _, err := planet.ReadTernaryMask(req.PredictedPath, req.PredNoData)
	if err != nil {
		return accuracy.Report{}, err
	}

	report, err := evaluateAgainst(pred, req.ReferencePath, req.RefNoData)
	if err != nil {
		return accuracy.Report{}, err
	}

	if reportCache != nil && key != "" {
		if err := reportCache.Set(key, report); err != nil {
			fmt.Printf("Warning: failed to cache accuracy report: %v\n", err)
		}
	}
	return report, nil
}

// evaluateAgainst reads the reference mask and scores pred against it. The
// reference's own nodata value applies unless refNoData overrides it.
func evaluateAgainst(pred raster.TernaryMask, referencePath string, refNoData *float64) (accuracy.Report, error) {
	ref, _, _, err := planet.ReadTernaryMask(referencePath, refNoData)
	if err != nil {
		return accuracy.Report{}, err
	}
	return accuracy.Evaluate(pred, ref, nil)
}

func noDataKey(v *float64) string {
	if v == nil {
		return "file"
	}
	return fmt.Sprint(*v)
}
