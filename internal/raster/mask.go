package raster

import "fmt"

const (
	NonWooded      uint8 = 0
	Wooded         uint8 = 1
	NoDataSentinel uint8 = 255
)

// ValidityMask marks usable pixels with true.
type ValidityMask struct {
	Height int
	Width  int
	Valid  []bool
}

func NewValidityMask(height, width int, valid bool) ValidityMask {
	mask := ValidityMask{Height: height, Width: width, Valid: make([]bool, height*width)}
	if valid {
		for i := range mask.Valid {
			mask.Valid[i] = true
		}
	}
	return mask
}

func (m ValidityMask) At(row, col int) bool {
	return m.Valid[row*m.Width+col]
}

// And returns the pixel-wise conjunction of m and other.
func (m ValidityMask) And(other ValidityMask) (ValidityMask, error) {
	if m.Height != other.Height || m.Width != other.Width {
		return ValidityMask{}, fmt.Errorf("%w: validity masks %dx%d and %dx%d", ErrShapeMismatch, m.Height, m.Width, other.Height, other.Width)
	}
	out := ValidityMask{Height: m.Height, Width: m.Width, Valid: make([]bool, len(m.Valid))}
	for i := range m.Valid {
		out.Valid[i] = m.Valid[i] && other.Valid[i]
	}
	return out, nil
}

func (m ValidityMask) CountValid() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// TernaryMask holds one of Wooded, NonWooded or NoDataSentinel per pixel.
type TernaryMask struct {
	Height int
	Width  int
	Data   []uint8
}

func NewTernaryMask(height, width int) TernaryMask {
	return TernaryMask{Height: height, Width: width, Data: make([]uint8, height*width)}
}

func (m TernaryMask) At(row, col int) uint8 {
	return m.Data[row*m.Width+col]
}

func (m TernaryMask) Set(row, col int, value uint8) {
	m.Data[row*m.Width+col] = value
}

type MaskCounts struct {
	Wooded    int `json:"wooded"`
	NonWooded int `json:"non_wooded"`
	NoData    int `json:"nodata"`
}

func (m TernaryMask) Counts() MaskCounts {
	var counts MaskCounts
	for _, v := range m.Data {
		switch v {
		case Wooded:
			counts.Wooded++
		case NonWooded:
			counts.NonWooded++
		default:
			counts.NoData++
		}
	}
	return counts
}
