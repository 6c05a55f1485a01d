package media

import (
	"bytes"
	"fmt"
	"image"

	// Decoders registered for DecodeConfig and Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"image-editor/internal/filesystem"
	"image-editor/internal/logging"
)

// Dimensions holds image width and height in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// ProbeResult is what a header-only read reveals about an image.
type ProbeResult struct {
	Dimensions
	Format string
}

// ProbeFile reads the image header at path without decoding pixel data.
func ProbeFile(path string) (*ProbeResult, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	return &ProbeResult{Dimensions: Dimensions{Width: cfg.Width, Height: cfg.Height}, Format: format}, nil
}

// ProbeBytes reads the header of an in-memory image.
func ProbeBytes(data []byte) (*ProbeResult, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("read image header: empty image %dx%d", cfg.Width, cfg.Height)
	}
	return &ProbeResult{Dimensions: Dimensions{Width: cfg.Width, Height: cfg.Height}, Format: format}, nil
}
