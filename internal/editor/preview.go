package editor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"image-editor/internal/logging"
	"image-editor/internal/media"
	"image-editor/internal/metrics"
)

// DefaultPreviewQuality is the JPEG quality of preview images.
const DefaultPreviewQuality = 90

// PreviewArtifact is an encoded preview. It is returned to the client and
// never stored.
type PreviewArtifact struct {
	DataURL          string
	MimeType         string
	OriginalFormat   string
	OriginalMimeType string
	EncodedBytes     int
}

// PreviewPipeline applies filters to a source image and encodes the result
// as a JPEG data URL.
type PreviewPipeline struct {
	lib     media.Library
	quality int
}

// NewPreviewPipeline creates a PreviewPipeline. A quality outside 1..100
// uses DefaultPreviewQuality.
func NewPreviewPipeline(lib media.Library, quality int) *PreviewPipeline {
	if quality < 1 || quality > 100 {
		quality = DefaultPreviewQuality
	}
	return &PreviewPipeline{lib: lib, quality: quality}
}

// Generate renders src with the filters in req.
func (p *PreviewPipeline) Generate(ctx context.Context, src *SourceImage, req EditRequest) (*PreviewArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, processingError(err)
	}

	start := time.Now()
	defer func() {
		metrics.EditorDuration.WithLabelValues(ActionPreview).Observe(time.Since(start).Seconds())
	}()

	img, err := p.lib.Load(src.AbsPath)
	if err != nil {
		return nil, p.fail(src, req, err)
	}
	defer img.Close()

	format := img.Format()

	if req.Contrast != 0 {
		if err := img.Contrast(req.Contrast > 0); err != nil {
			return nil, p.fail(src, req, err)
		}
	}

	if req.Amount > 0 && req.Radius > 0 {
		if err := img.UnsharpMask(req.Radius, 1, req.Amount, req.Threshold); err != nil {
			return nil, p.fail(src, req, err)
		}
	}

	out, err := img.Clone()
	if err != nil {
		return nil, p.fail(src, req, err)
	}
	defer out.Close()

	data, err := out.EncodeJPEG(p.quality)
	if err != nil {
		return nil, p.fail(src, req, err)
	}
	metrics.EditorPreviewBytes.Observe(float64(len(data)))

	return &PreviewArtifact{
		DataURL:          "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
		MimeType:         "image/jpeg",
		OriginalFormat:   strings.ToUpper(format),
		OriginalMimeType: media.MimeForFormat(format),
		EncodedBytes:     len(data),
	}, nil
}

func (p *PreviewPipeline) fail(src *SourceImage, req EditRequest, err error) error {
	logging.ErrorWith(logging.Fields{
		"image_id":   src.ID,
		"backend":    p.lib.Name(),
		"file_size":  src.ByteSize,
		"dimensions": fmt.Sprintf("%dx%d", src.Width, src.Height),
		"contrast":   req.Contrast,
		"amount":     req.Amount,
		"radius":     req.Radius,
		"threshold":  req.Threshold,
	}, "preview processing failed: %v", err)
	return processingError(err)
}
