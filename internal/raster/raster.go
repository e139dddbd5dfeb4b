package raster

import (
	"fmt"
)

// Plane is a single H×W band stored row-major.
type Plane struct {
	Height int
	Width  int
	Data   []float64
}

func NewPlane(height, width int) Plane {
	return Plane{Height: height, Width: width, Data: make([]float64, height*width)}
}

// NewPlaneFrom wraps data without copying it.
func NewPlaneFrom(height, width int, data []float64) (Plane, error) {
	if len(data) != height*width {
		return Plane{}, fmt.Errorf("%w: %d values for a %dx%d plane", ErrShapeMismatch, len(data), height, width)
	}
	return Plane{Height: height, Width: width, Data: data}, nil
}

func (p Plane) At(row, col int) float64 {
	return p.Data[row*p.Width+col]
}

func (p Plane) Set(row, col int, value float64) {
	p.Data[row*p.Width+col] = value
}

func (p Plane) Len() int {
	return len(p.Data)
}

func (p Plane) SameShape(other Plane) bool {
	return p.Height == other.Height && p.Width == other.Width
}

func (p Plane) Clone() Plane {
	data := make([]float64, len(p.Data))
	copy(data, p.Data)
	return Plane{Height: p.Height, Width: p.Width, Data: data}
}

// Fill sets every pixel of the plane to value.
func (p Plane) Fill(value float64) {
	for i := range p.Data {
		p.Data[i] = value
	}
}

// MultiChannelRaster is an ordered stack of co-registered planes.
type MultiChannelRaster struct {
	Height   int
	Width    int
	Channels []Plane
	Names    []string
}

// NewMultiChannelRaster validates that every plane shares one shape.
func NewMultiChannelRaster(channels []Plane, names []string) (*MultiChannelRaster, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: raster has no channels", ErrShapeMismatch)
	}
	if names != nil && len(names) != len(channels) {
		return nil, fmt.Errorf("%w: %d channel names for %d channels", ErrShapeMismatch, len(names), len(channels))
	}
	height, width := channels[0].Height, channels[0].Width
	for i, channel := range channels {
		if channel.Height != height || channel.Width != width {
			return nil, fmt.Errorf("%w: channel %d is %dx%d, expected %dx%d", ErrShapeMismatch, i, channel.Height, channel.Width, height, width)
		}
	}
	if names == nil {
		names = make([]string, len(channels))
		for i := range names {
			names[i] = fmt.Sprintf("band_%d", i+1)
		}
	}
	return &MultiChannelRaster{Height: height, Width: width, Channels: channels, Names: names}, nil
}

func (r *MultiChannelRaster) ChannelCount() int {
	return len(r.Channels)
}

// Channel returns the plane with the given name.
func (r *MultiChannelRaster) Channel(name string) (Plane, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Channels[i], true
		}
	}
	return Plane{}, false
}
