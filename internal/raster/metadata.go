package raster

import "strings"

// DataType names the pixel type of a written raster.
type DataType string

const (
	Byte    DataType = "Byte"
	Float32 DataType = "Float32"
	Float64 DataType = "Float64"
)

// Metadata is the geospatial description of a raster. It is a value type: the
// With* methods return a modified copy and leave the receiver unchanged.
type Metadata struct {
	GeoTransform [6]float64
	Projection   string
	Height       int
	Width        int
	ChannelCount int
	DataType     DataType
	NoData       *float64
}

func (m Metadata) WithChannelCount(count int) Metadata {
	m.ChannelCount = count
	return m
}

func (m Metadata) WithDataType(dataType DataType) Metadata {
	m.DataType = dataType
	return m
}

func (m Metadata) WithNoData(value float64) Metadata {
	m.NoData = &value
	return m
}

// NoDataOr returns the no-data value or fallback when none is set.
func (m Metadata) NoDataOr(fallback float64) float64 {
	if m.NoData == nil {
		return fallback
	}
	return *m.NoData
}

// IsProjected reports whether the projection is a projected (metric) CRS.
func (m Metadata) IsProjected() bool {
	wkt := strings.TrimSpace(m.Projection)
	return strings.HasPrefix(wkt, "PROJCS") || strings.HasPrefix(wkt, "PROJCRS")
}

// PixelArea is the area of one pixel in squared map units.
func (m Metadata) PixelArea() float64 {
	area := m.GeoTransform[1] * m.GeoTransform[5]
	if area < 0 {
		return -area
	}
	return area
}

// PixelToGeo applies the geotransform to pixel coordinates (col,row); add 0.5
// to each for the pixel centre.
func (m Metadata) PixelToGeo(col, row float64) (float64, float64) {
	gt := m.GeoTransform
	x := gt[0] + gt[1]*col + gt[2]*row
	y := gt[3] + gt[4]*col + gt[5]*row
	return x, y
}
