package output

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/forest-guardian/wooded-mask/internal/properties"
	"github.com/forest-guardian/wooded-mask/internal/raster"
)

const (
	previewMaxWidth = 1024
	legendHeight    = 28
)

func classColor(v uint8) color.RGBA {
	c, ok := properties.ColorMap[v]
	if !ok {
		c = properties.ColorMap[raster.NoDataSentinel]
	}
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func maskImage(mask raster.TernaryMask) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			img.SetRGBA(x, y, classColor(mask.At(y, x)))
		}
	}
	return img
}

// fitWidth scales src down to at most maxWidth pixels wide, keeping classes
// crisp with nearest-neighbour sampling.
func fitWidth(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return src
	}
	h := max(1, int(math.Round(float64(b.Dy())*float64(maxWidth)/float64(b.Dx()))))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// CreateMaskPreview writes a PNG of mask with a class legend underneath.
func CreateMaskPreview(mask raster.TernaryMask, outputImagePath string) (string, error) {
	if !strings.HasSuffix(outputImagePath, ".png") {
		outputImagePath += ".png"
	}
	if err := os.MkdirAll(filepath.Dir(outputImagePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}

	scaled := fitWidth(maskImage(mask), previewMaxWidth)
	w, h := scaled.Bounds().Dx(), scaled.Bounds().Dy()
	dc := gg.NewContext(max(w, 240), h+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(scaled, 0, 0)

	counts := mask.Counts()
	dc.SetFontFace(basicfont.Face7x13)
	x := 6.0
	for _, item := range []struct {
		class uint8
		label string
	}{
		{raster.Wooded, fmt.Sprintf("wooded %d", counts.Wooded)},
		{raster.NonWooded, fmt.Sprintf("non-wooded %d", counts.NonWooded)},
		{raster.NoDataSentinel, fmt.Sprintf("nodata %d", counts.NoData)},
	} {
		dc.SetColor(classColor(item.class))
		dc.DrawRectangle(x, float64(h)+8, 12, 12)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawString(item.label, x+16, float64(h)+19)
		tw, _ := dc.MeasureString(item.label)
		x += tw + 30
	}

	if err := dc.SavePNG(outputImagePath); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return outputImagePath, nil
}

// CreateIndexPreview renders a [0,1] plane (for example a rescaled NDVI
// feature) as a brown-to-green ramp PNG. NaN pixels are black.
func CreateIndexPreview(plane raster.Plane, outputImagePath string) (string, error) {
	if !strings.HasSuffix(outputImagePath, ".png") {
		outputImagePath += ".png"
	}
	if err := os.MkdirAll(filepath.Dir(outputImagePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, plane.Width, plane.Height))
	for y := 0; y < plane.Height; y++ {
		for x := 0; x < plane.Width; x++ {
			v := plane.At(y, x)
			if math.IsNaN(v) {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			v = math.Max(0, math.Min(1, v))
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(150 * (1 - v)),
				G: uint8(90 + 140*v),
				B: uint8(40 * (1 - v)),
				A: 255,
			})
		}
	}

	if err := gg.SavePNG(outputImagePath, fitWidth(img, previewMaxWidth)); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return outputImagePath, nil
}
