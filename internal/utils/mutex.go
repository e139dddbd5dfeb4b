package utils

import "sync"

var gdalMu sync.Mutex

// ExecuteWithGDALLock serializes fn with every other GDAL call made through
// this helper. GDAL datasets are not safe for concurrent use, and batch runs
// open several scenes from different goroutines.
func ExecuteWithGDALLock(fn func() error) error {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	return fn()
}
