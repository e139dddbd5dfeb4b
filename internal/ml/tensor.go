package ml

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
)

// Batches travel as little-endian float32 tensors: N×C×P×P for requests and
// N×P×P for responses.

func encodePatches(batch []tiling.Patch) ([]byte, []int, error) {
	if len(batch) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	channels, size := batch[0].Channels, batch[0].Size
	buf := make([]byte, 0, len(batch)*channels*size*size*4)
	for i, patch := range batch {
		if patch.Channels != channels || patch.Size != size {
			return nil, nil, fmt.Errorf("%w: patch %d is %dx%dx%d, expected %dx%dx%d", raster.ErrShapeMismatch, i, patch.Channels, patch.Size, patch.Size, channels, size, size)
		}
		for _, v := range patch.Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		}
	}
	return buf, []int{len(batch), channels, size, size}, nil
}

// fitsFloat32s reports whether data holds exactly the product of dims float32
// values. It divides instead of multiplying so a huge shape cannot overflow.
func fitsFloat32s(data []byte, dims ...int) bool {
	if len(data)%4 != 0 {
		return false
	}
	count := len(data) / 4
	for _, d := range dims {
		if d <= 0 || count%d != 0 {
			return false
		}
		count /= d
	}
	return count == 1
}

func decodePatches(data []byte, shape []int) ([]tiling.Patch, error) {
	if len(shape) != 4 || shape[2] != shape[3] {
		return nil, fmt.Errorf("invalid batch shape %v", shape)
	}
	if !fitsFloat32s(data, shape...) {
		return nil, fmt.Errorf("%w: %d bytes for batch shape %v", raster.ErrShapeMismatch, len(data), shape)
	}
	n, channels, size := shape[0], shape[1], shape[2]
	perPatch := channels * size * size
	values := decodeFloats(data)
	batch := make([]tiling.Patch, n)
	for i := range batch {
		batch[i] = tiling.Patch{Channels: channels, Size: size, Data: values[i*perPatch : (i+1)*perPatch]}
	}
	return batch, nil
}

func encodeProbabilities(planes []raster.Plane) []byte {
	buf := make([]byte, 0)
	for _, p := range planes {
		for _, v := range p.Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		}
	}
	return buf
}

func decodeProbabilities(data []byte, n, size int) ([]raster.Plane, error) {
	if !fitsFloat32s(data, n, size, size) {
		return nil, fmt.Errorf("%w: %d bytes for %d probability planes of %dx%d", raster.ErrShapeMismatch, len(data), n, size, size)
	}
	perPlane := size * size
	values := decodeFloats(data)
	planes := make([]raster.Plane, n)
	for i := range planes {
		planes[i] = raster.Plane{Height: size, Width: size, Data: values[i*perPlane : (i+1)*perPlane]}
	}
	return planes, nil
}

func decodeFloats(data []byte) []float64 {
	values := make([]float64, len(data)/4)
	for i := range values {
		values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return values
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	shape := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid shape %q", s)
		}
		shape[i] = v
	}
	return shape, nil
}
