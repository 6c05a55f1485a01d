package media

import (
	"fmt"
	"math"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"image-editor/internal/logging"
	"image-editor/internal/workers"
)

// Contrast factors used by the vips backend around mid grey.
const (
	vipsContrastUp   = 1.25
	vipsContrastDown = 0.8
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level to a libvips level and a
// handler that forwards into the logging package.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, func(domain string, l vips.LogLevel, msg string) {
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn, logging.LevelError:
		return vips.LogLevelError, func(domain string, l vips.LogLevel, msg string) {
			if l >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		return vips.LogLevelWarning, func(domain string, l vips.LogLevel, msg string) {
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	}
}

// InitVips starts libvips. It is safe to call more than once.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	level, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: workers.ForCPU(4),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips. libvips cannot be restarted afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsLibrary processes images with libvips.
type VipsLibrary struct{}

// NewVipsLibrary returns the libvips backend. Call InitVips first.
func NewVipsLibrary() *VipsLibrary { return &VipsLibrary{} }

// Name implements Library.
func (l *VipsLibrary) Name() string { return BackendVips }

// Load opens path with libvips, applying EXIF orientation.
func (l *VipsLibrary) Load(path string) (Handle, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, fmt.Errorf("vips auto-rotate: %w", err)
	}
	return &vipsHandle{ref: ref, format: NormalizeFormat(vips.ImageTypes[ref.Format()])}, nil
}

type vipsHandle struct {
	ref    *vips.ImageRef
	format string
}

func (h *vipsHandle) Format() string { return h.format }

// Contrast stretches or compresses intensities around mid grey.
func (h *vipsHandle) Contrast(sharpen bool) error {
	if h.ref == nil {
		return errClosed
	}
	a := vipsContrastDown
	if sharpen {
		a = vipsContrastUp
	}
	return h.ref.Linear1(a, 128*(1-a))
}

// UnsharpMask maps onto vips_sharpen: sigma bounded by radius, threshold to
// the flat-area cutoff in L* units, amount to the slope for edges.
func (h *vipsHandle) UnsharpMask(radius, sigma, amount, threshold float64) error {
	if h.ref == nil {
		return errClosed
	}
	if radius <= 0 || amount <= 0 {
		return nil
	}
	return h.ref.Sharpen(math.Min(sigma, radius), threshold*100, amount)
}

func (h *vipsHandle) Clone() (Handle, error) {
	if h.ref == nil {
		return nil, errClosed
	}
	cp, err := h.ref.Copy()
	if err != nil {
		return nil, fmt.Errorf("vips copy: %w", err)
	}
	return &vipsHandle{ref: cp, format: h.format}, nil
}

func (h *vipsHandle) EncodeJPEG(quality int) ([]byte, error) {
	if h.ref == nil {
		return nil, errClosed
	}
	buf, _, err := h.ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return buf, nil
}

func (h *vipsHandle) Close() {
	if h.ref != nil {
		h.ref.Close()
		h.ref = nil
	}
}
