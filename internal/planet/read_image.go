package planet

import (
	"errors"
	"fmt"
	"os"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
)

func init() {
	godal.RegisterAll()
}

func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", raster.ErrInputNotFound, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return nil
}

func metadataOf(dataset *godal.Dataset) (raster.Metadata, error) {
	structure := dataset.Structure()
	geoTransform, err := dataset.GeoTransform()
	if err != nil {
		return raster.Metadata{}, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	meta := raster.Metadata{
		GeoTransform: geoTransform,
		Projection:   dataset.Projection(),
		Height:       structure.SizeY,
		Width:        structure.SizeX,
		ChannelCount: structure.NBands,
		DataType:     raster.Float64,
	}
	if bands := dataset.Bands(); len(bands) > 0 {
		if nd, ok := bands[0].NoData(); ok {
			meta = meta.WithNoData(nd)
		}
	}
	return meta, nil
}

func readBand(band godal.Band, width, height int) (raster.Plane, error) {
	plane := raster.NewPlane(height, width)
	if err := band.Read(0, 0, plane.Data, width, height); err != nil {
		return raster.Plane{}, fmt.Errorf("failed to read raster data: %w", err)
	}
	return plane, nil
}

// ReadImage loads every band of a multispectral scene as float64 planes, in
// file band order.
func ReadImage(path string) (*raster.MultiChannelRaster, raster.Metadata, error) {
	if err := checkExists(path); err != nil {
		return nil, raster.Metadata{}, err
	}

	var image *raster.MultiChannelRaster
	var meta raster.Metadata
	err := utils.ExecuteWithGDALLock(func() error {
		dataset, err := godal.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open TIFF file: %w", err)
		}
		defer dataset.Close()

		if meta, err = metadataOf(dataset); err != nil {
			return err
		}
		planes := make([]raster.Plane, 0, meta.ChannelCount)
		for i, band := range dataset.Bands() {
			plane, err := readBand(band, meta.Width, meta.Height)
			if err != nil {
				return fmt.Errorf("band %d: %w", i+1, err)
			}
			planes = append(planes, plane)
		}
		image, err = raster.NewMultiChannelRaster(planes, nil)
		return err
	})
	if err != nil {
		return nil, raster.Metadata{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return image, meta, nil
}
