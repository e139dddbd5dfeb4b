package output

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/icza/mjpeg"
)

// TimelapseFPS is the frame rate of NDVI timelapses; one frame per date.
const TimelapseFPS = 2

func decodeFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return img, nil
}

// CreateTimelapse joins the preview images into a Motion JPEG .avi, in the
// order given. Every frame must match the first frame's size.
func CreateTimelapse(framePaths []string, outputPath string) (string, error) {
	if len(framePaths) == 0 {
		return "", fmt.Errorf("no frames to write")
	}
	if !strings.HasSuffix(outputPath, ".avi") {
		outputPath += ".avi"
	}

	first, err := decodeFrame(framePaths[0])
	if err != nil {
		return "", err
	}
	bounds := first.Bounds()

	writer, err := mjpeg.New(outputPath, int32(bounds.Dx()), int32(bounds.Dy()), TimelapseFPS)
	if err != nil {
		return "", fmt.Errorf("failed to create video: %w", err)
	}

	for i, path := range framePaths {
		img := first
		if i > 0 {
			if img, err = decodeFrame(path); err != nil {
				writer.Close()
				return "", err
			}
		}
		if img.Bounds().Size() != bounds.Size() {
			writer.Close()
			return "", fmt.Errorf("frame %s is %v, expected %v", path, img.Bounds().Size(), bounds.Size())
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
			writer.Close()
			return "", err
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish video: %w", err)
	}
	return outputPath, nil
}
