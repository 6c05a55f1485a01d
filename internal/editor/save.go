package editor

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"image-editor/internal/database"
	"image-editor/internal/logging"
	"image-editor/internal/media"
	"image-editor/internal/metrics"
	"image-editor/internal/storage"
)

// EditedExcerpt is the description given to saved copies.
const EditedExcerpt = "Edited with Image Editor"

var dataURLPattern = regexp.MustCompile(`^data:image/([a-z]+);base64,`)

// AssetCreator records new assets.
type AssetCreator interface {
	CreateAttachment(ctx context.Context, a *database.Attachment) (int64, error)
}

// FileWriter stores and removes files.
type FileWriter interface {
	Save(name string, data []byte) (string, error)
	Delete(rel string) error
}

// SavedAsset describes a newly stored copy of an edited image.
type SavedAsset struct {
	ID       int64
	FilePath string
	MimeType string
	Title    string
	ByteSize int64
	Width    int
	Height   int
	EditLink string
}

// SavePipeline stores client-rendered images as new assets.
type SavePipeline struct {
	assets    AssetCreator
	files     FileWriter
	limits    Limits
	publicURL string
	now       func() time.Time
}

// NewSavePipeline creates a SavePipeline. publicURL prefixes the edit links
// it returns.
func NewSavePipeline(assets AssetCreator, files FileWriter, limits Limits, publicURL string) *SavePipeline {
	return &SavePipeline{
		assets:    assets,
		files:     files,
		limits:    limits.withDefaults(),
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// decodePayload verifies a data URL and returns the declared MIME type, the
// decoded bytes and their header information.
func (p *SavePipeline) decodePayload(payload string) (string, []byte, *media.ProbeResult, error) {
	if payload == "" {
		return "", nil, nil, validationError(ReasonPayload, MsgNoImageData)
	}

	m := dataURLPattern.FindStringSubmatch(payload)
	if m == nil {
		return "", nil, nil, decodeError(MsgInvalidFormat, nil)
	}
	mime := "image/" + m[1]
	encoded := payload[len(m[0]):]

	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > p.limits.MaxFileSize+2 {
		return "", nil, nil, validationError(ReasonFileTooLarge, MsgFileTooLarge)
	}

	data, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return "", nil, nil, decodeError(MsgDecodeFailed, err)
	}
	if int64(len(data)) > p.limits.MaxFileSize {
		return "", nil, nil, validationError(ReasonFileTooLarge, MsgFileTooLarge)
	}

	probe, err := media.ProbeBytes(data)
	if err != nil {
		return "", nil, nil, decodeError(MsgNotAnImage, err)
	}
	if err := p.limits.CheckDimensions(probe.Width, probe.Height); err != nil {
		return "", nil, nil, err
	}

	return mime, data, probe, nil
}

// Save decodes payload, writes it next to the other uploads and records it
// as a new asset with no parent. authorID may be nil.
func (p *SavePipeline) Save(ctx context.Context, src *SourceImage, payload string, authorID *int64) (*SavedAsset, error) {
	start := time.Now()
	defer func() {
		metrics.EditorDuration.WithLabelValues(ActionSave).Observe(time.Since(start).Seconds())
	}()

	mime, data, probe, err := p.decodePayload(payload)
	if err != nil {
		countRejection(err)
		logging.DebugWith(logging.Fields{"image_id": src.ID, "payload_length": len(payload)}, "save payload rejected: %v", err)
		return nil, err
	}

	ext, ok := media.ExtensionForMime(mime)
	if !ok {
		metrics.EditorValidationRejections.WithLabelValues(ReasonUnsupportedType).Inc()
		return nil, validationError(ReasonUnsupportedType, MsgUnsupportedType)
	}

	base := src.BaseName()
	name := storage.SanitizeFileName(base + "-edited-" + strconv.FormatInt(p.now().Unix(), 10) + "." + ext)

	fields := logging.Fields{
		"image_id":  src.ID,
		"mime_type": mime,
		"size":      len(data),
		"width":     probe.Width,
		"height":    probe.Height,
	}

	rel, err := p.files.Save(name, data)
	if err != nil {
		logging.ErrorWith(fields, "failed to write edited image: %v", err)
		return nil, persistenceError(fmt.Sprintf("Failed to save image file: %s", storageReason(err)), err)
	}
	fields["file"] = rel

	asset := &database.Attachment{
		FilePath: rel,
		MimeType: mime,
		Title:    base + " (Edited)",
		Excerpt:  EditedExcerpt,
		ByteSize: int64(len(data)),
		Width:    probe.Width,
		Height:   probe.Height,
		AuthorID: authorID,
	}

	id, err := p.assets.CreateAttachment(ctx, asset)
	if err != nil {
		logging.ErrorWith(fields, "failed to insert attachment: %v", err)
		p.removeOrphan(rel)
		return nil, persistenceError(MsgRecordFailed, err)
	}

	logging.InfoWith(logging.Fields{"image_id": src.ID, "new_id": id, "file": rel}, "saved edited image")

	return &SavedAsset{
		ID:       id,
		FilePath: rel,
		MimeType: mime,
		Title:    asset.Title,
		ByteSize: asset.ByteSize,
		Width:    asset.Width,
		Height:   asset.Height,
		EditLink: p.EditLink(id),
	}, nil
}

// EditLink returns the navigation link for an asset.
func (p *SavePipeline) EditLink(id int64) string {
	return p.publicURL + "/assets/" + strconv.FormatInt(id, 10)
}

func (p *SavePipeline) removeOrphan(rel string) {
	if err := p.files.Delete(rel); err != nil {
		logging.ErrorWith(logging.Fields{"file": rel}, "failed to remove orphaned file: %v", err)
		metrics.EditorOrphanCleanups.WithLabelValues("failed").Inc()
		return
	}
	metrics.EditorOrphanCleanups.WithLabelValues("removed").Inc()
}

// storageReason hides filesystem paths from client messages.
func storageReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}
