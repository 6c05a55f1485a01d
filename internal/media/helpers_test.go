package media

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"testing"
)

// gradient returns an RGBA gradient so filters have edges to work on.
func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func encodeTestImage(t *testing.T, width, height int, format string) []byte {
	t.Helper()

	img := gradient(width, height)
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()
	if err := os.WriteFile(path, encodeTestImage(t, width, height, format), 0o644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
}
