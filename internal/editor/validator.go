package editor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"image-editor/internal/database"
	"image-editor/internal/logging"
	"image-editor/internal/media"
	"image-editor/internal/memory"
)

// Default source ceilings.
const (
	DefaultMaxFileSize int64 = 10 << 20
	DefaultMaxWidth          = 4096
	DefaultMaxHeight         = 4096
)

// Limits bounds what the editor agrees to load.
type Limits struct {
	MaxFileSize int64
	MaxWidth    int
	MaxHeight   int
	Memory      memory.Budget
}

// DefaultLimits returns the default ceilings with the process memory budget.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize: DefaultMaxFileSize,
		MaxWidth:    DefaultMaxWidth,
		MaxHeight:   DefaultMaxHeight,
		Memory:      memory.NewBudget(0),
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxWidth <= 0 {
		l.MaxWidth = DefaultMaxWidth
	}
	if l.MaxHeight <= 0 {
		l.MaxHeight = DefaultMaxHeight
	}
	if l.Memory.Ceiling <= 0 {
		l.Memory = memory.NewBudget(0)
	}
	return l
}

// CheckDimensions applies the width, height and memory ceilings.
func (l Limits) CheckDimensions(width, height int) error {
	if width > l.MaxWidth || height > l.MaxHeight {
		return validationError(ReasonDimensions, fmt.Sprintf(
			"Image dimensions (%dx%d) exceed maximum allowed size (%dx%d).",
			width, height, l.MaxWidth, l.MaxHeight))
	}
	if !l.Memory.Fits(width, height) {
		return validationError(ReasonMemory, MsgMemory)
	}
	return nil
}

// AssetLookup finds asset records by id.
type AssetLookup interface {
	GetAttachment(ctx context.Context, id int64) (*database.Attachment, error)
}

// FileProber resolves and sizes stored files.
type FileProber interface {
	Abs(rel string) (string, error)
	Stat(rel string) (int64, error)
}

// SourceImage is a stored image that passed every pre-decode check.
type SourceImage struct {
	ID       int64
	FilePath string
	AbsPath  string
	ByteSize int64
	Width    int
	Height   int
	MimeType string
	Format   string
}

// BaseName returns the file name of the source without its extension.
func (s *SourceImage) BaseName() string {
	name := path.Base(s.FilePath)
	return strings.TrimSuffix(name, path.Ext(name))
}

// Validator resolves an image id into a SourceImage, rejecting anything the
// pipelines should not load. Checks run cheapest first and no pixel data is
// decoded.
type Validator struct {
	assets AssetLookup
	files  FileProber
	limits Limits
}

// NewValidator creates a Validator.
func NewValidator(assets AssetLookup, files FileProber, limits Limits) *Validator {
	return &Validator{assets: assets, files: files, limits: limits.withDefaults()}
}

// Limits returns the ceilings in effect.
func (v *Validator) Limits() Limits { return v.limits }

// Source loads and checks the asset with the given id.
func (v *Validator) Source(ctx context.Context, id int64) (*SourceImage, error) {
	src, err := v.source(ctx, id)
	if err != nil {
		countRejection(err)
		return nil, err
	}
	return src, nil
}

func (v *Validator) source(ctx context.Context, id int64) (*SourceImage, error) {
	if id <= 0 {
		return nil, validationError(ReasonInvalidImageID, MsgInvalidImageID)
	}

	att, err := v.assets.GetAttachment(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.ErrorWith(logging.Fields{"image_id": id}, "asset lookup failed: %v", err)
		}
		return nil, notFoundError(MsgInvalidAttachment, err)
	}
	if !media.IsImageMime(att.MimeType) {
		return nil, notFoundError(MsgInvalidAttachment, fmt.Errorf("attachment %d has type %q", id, att.MimeType))
	}

	abs, err := v.files.Abs(att.FilePath)
	if err != nil {
		return nil, notFoundError(MsgFileNotFound, err)
	}
	size, err := v.files.Stat(att.FilePath)
	if err != nil {
		return nil, notFoundError(MsgFileNotFound, err)
	}
	if size > v.limits.MaxFileSize {
		return nil, validationError(ReasonFileTooLarge, MsgFileTooLarge)
	}

	probe, err := media.ProbeFile(abs)
	if err != nil {
		logging.DebugWith(logging.Fields{"image_id": id}, "header read failed: %v", err)
		return nil, validationError(ReasonUnreadable, MsgNoDimensions)
	}
	if err := v.limits.CheckDimensions(probe.Width, probe.Height); err != nil {
		logging.DebugWith(logging.Fields{
			"image_id": id,
			"width":    probe.Width,
			"height":   probe.Height,
			"estimate": memory.FormatBytes(memory.EstimateDecode(probe.Width, probe.Height)),
			"ceiling":  memory.FormatBytes(v.limits.Memory.Ceiling),
		}, "source rejected")
		return nil, err
	}

	return &SourceImage{
		ID:       att.ID,
		FilePath: att.FilePath,
		AbsPath:  abs,
		ByteSize: size,
		Width:    probe.Width,
		Height:   probe.Height,
		MimeType: att.MimeType,
		Format:   probe.Format,
	}, nil
}
