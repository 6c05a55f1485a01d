package media

import (
	"fmt"
	"strings"
)

// Backend names accepted by NewLibrary.
const (
	BackendImaging = "imaging"
	BackendVips    = "vips"
)

// Library opens images for editing.
type Library interface {
	Name() string
	Load(path string) (Handle, error)
}

// Handle is a decoded image. Filters modify it in place.
type Handle interface {
	// Format is the decoder format name of the source, e.g. "jpeg".
	Format() string
	// Contrast increases contrast when sharpen is true and decreases it
	// otherwise. The step is fixed.
	Contrast(sharpen bool) error
	UnsharpMask(radius, sigma, amount, threshold float64) error
	Clone() (Handle, error)
	EncodeJPEG(quality int) ([]byte, error)
	Close()
}

// NewLibrary returns the backend named by name. The vips backend requires
// InitVips to have succeeded.
func NewLibrary(name string) (Library, error) {
	switch strings.ToLower(name) {
	case "", BackendImaging:
		return NewImagingLibrary(), nil
	case BackendVips:
		if !IsVipsAvailable() {
			return nil, fmt.Errorf("libvips not initialized")
		}
		return NewVipsLibrary(), nil
	default:
		return nil, fmt.Errorf("unknown image backend %q", name)
	}
}
