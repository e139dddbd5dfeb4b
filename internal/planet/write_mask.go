package planet

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/utils"
)

var gdalTypes = map[raster.DataType]godal.DataType{
	raster.Byte:    godal.Byte,
	raster.Float32: godal.Float32,
	raster.Float64: godal.Float64,
}

// writeBands creates an LZW-compressed GeoTIFF at path carrying meta's
// georeferencing; fill writes each band.
func writeBands(path string, meta raster.Metadata, fill func(bands []godal.Band) error) error {
	dtype, ok := gdalTypes[meta.DataType]
	if !ok {
		return fmt.Errorf("unsupported data type %q", meta.DataType)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	return utils.ExecuteWithGDALLock(func() error {
		dataset, err := godal.Create(godal.GTiff, path, meta.ChannelCount, dtype, meta.Width, meta.Height,
			godal.CreationOption("COMPRESS=LZW"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := dataset.SetGeoTransform(meta.GeoTransform); err != nil {
			dataset.Close()
			return fmt.Errorf("failed to set GeoTransform: %w", err)
		}
		if meta.Projection != "" {
			if err := dataset.SetProjection(meta.Projection); err != nil {
				dataset.Close()
				return fmt.Errorf("failed to set projection: %w", err)
			}
		}
		bands := dataset.Bands()
		if meta.NoData != nil {
			for _, band := range bands {
				if err := band.SetNoData(*meta.NoData); err != nil {
					dataset.Close()
					return fmt.Errorf("failed to set nodata: %w", err)
				}
			}
		}
		if err := fill(bands); err != nil {
			dataset.Close()
			return err
		}
		if err := dataset.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", path, err)
		}
		return nil
	})
}

// WriteTernaryMask writes a single-band Byte GeoTIFF with nodata 255. meta is
// the source image's metadata; its band count, type and nodata are replaced.
func WriteTernaryMask(path string, mask raster.TernaryMask, meta raster.Metadata) error {
	if meta.Height != mask.Height || meta.Width != mask.Width {
		return fmt.Errorf("%w: mask %dx%d, metadata %dx%d", raster.ErrShapeMismatch, mask.Height, mask.Width, meta.Height, meta.Width)
	}
	out := meta.WithChannelCount(1).WithDataType(raster.Byte).WithNoData(float64(raster.NoDataSentinel))
	return writeBands(path, out, func(bands []godal.Band) error {
		if err := bands[0].Write(0, 0, mask.Data, mask.Width, mask.Height); err != nil {
			return fmt.Errorf("failed to write mask data: %w", err)
		}
		return nil
	})
}

// WriteFeatures writes the feature stack as a Float32 GeoTIFF, one band per
// channel in stack order.
func WriteFeatures(path string, features *raster.MultiChannelRaster, meta raster.Metadata) error {
	if meta.Height != features.Height || meta.Width != features.Width {
		return fmt.Errorf("%w: features %dx%d, metadata %dx%d", raster.ErrShapeMismatch, features.Height, features.Width, meta.Height, meta.Width)
	}
	out := meta.WithChannelCount(features.ChannelCount()).WithDataType(raster.Float32)
	out.NoData = nil
	return writeBands(path, out, func(bands []godal.Band) error {
		for i, channel := range features.Channels {
			if err := bands[i].Write(0, 0, toFloat32(channel.Data), features.Width, features.Height); err != nil {
				return fmt.Errorf("failed to write band %d (%s): %w", i+1, features.Names[i], err)
			}
		}
		return nil
	})
}

// WriteProbability writes an averaged probability map as Float32.
func WriteProbability(path string, prob raster.Plane, meta raster.Metadata) error {
	out := meta.WithChannelCount(1).WithDataType(raster.Float32)
	out.NoData = nil
	out.Height, out.Width = prob.Height, prob.Width
	return writeBands(path, out, func(bands []godal.Band) error {
		return bands[0].Write(0, 0, toFloat32(prob.Data), prob.Width, prob.Height)
	})
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// ReadTernaryMask reads band 1 of a mask raster in its native type. Pixels
// that are NaN, equal the nodata value or are anything but exactly 0 or 1 come
// back as NoDataSentinel. noData overrides the file's declared value when set.
// The returned nodata is the declared value, or nil when none is set.
func ReadTernaryMask(path string, noData *float64) (raster.TernaryMask, *float64, raster.Metadata, error) {
	if err := checkExists(path); err != nil {
		return raster.TernaryMask{}, nil, raster.Metadata{}, err
	}

	var values raster.Plane
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
		values, err = readBand(dataset.Bands()[0], meta.Width, meta.Height)
		return err
	})
	if err != nil {
		return raster.TernaryMask{}, nil, raster.Metadata{}, fmt.Errorf("failed to read mask %s: %w", path, err)
	}

	skip := meta.NoData
	if noData != nil {
		skip = noData
	}
	mask := raster.NewTernaryMask(meta.Height, meta.Width)
	for i, v := range values.Data {
		switch {
		case math.IsNaN(v), skip != nil && v == *skip:
			mask.Data[i] = raster.NoDataSentinel
		case v == 0:
			mask.Data[i] = raster.NonWooded
		case v == 1:
			mask.Data[i] = raster.Wooded
		default:
			mask.Data[i] = raster.NoDataSentinel
		}
	}
	return mask, meta.NoData, meta.WithDataType(raster.Byte), nil
}
