package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/logging"
	"image-editor/internal/media"
	"image-editor/internal/metrics"
	"image-editor/internal/storage"
)

const (
	msgNoFile        = "No file uploaded."
	msgUploadFailed  = "Failed to store uploaded file."
	msgAssetNotFound = "Asset not found."
)

// AssetResponse describes a stored asset.
type AssetResponse struct {
	*database.Attachment
	URL      string `json:"url"`
	EditLink string `json:"editLink"`
}

func (h *Handlers) assetResponse(a *database.Attachment) AssetResponse {
	return AssetResponse{
		Attachment: a,
		URL:        h.storage.URL(a.FilePath),
		EditLink:   h.save.EditLink(a.ID),
	}
}

// UploadAsset stores a multipart "file" field as a new asset. The content
// type is sniffed from the bytes; the client's declared type is ignored.
func (h *Handlers) UploadAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := h.validator.Limits()

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, bodyError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limits.MaxFileSize+1))
	if err != nil {
		writeError(w, bodyError(err))
		return
	}
	if int64(len(data)) > limits.MaxFileSize {
		writeError(w, editor.ErrRequestTooLarge(nil))
		return
	}

	detected := mimetype.Detect(data)
	mimeType := strings.TrimSpace(strings.Split(detected.String(), ";")[0])
	ext, ok := media.ExtensionForMime(mimeType)
	if !ok {
		metrics.EditorValidationRejections.WithLabelValues(editor.ReasonUnsupportedType).Inc()
		logging.Debug("Rejected upload %q sniffed as %s", header.Filename, mimeType)
		writeFailure(w, http.StatusBadRequest, editor.MsgUnsupportedType)
		return
	}

	probe, err := media.ProbeBytes(data)
	if err != nil {
		writeFailure(w, http.StatusUnprocessableEntity, editor.MsgNotAnImage)
		return
	}
	if err := limits.CheckDimensions(probe.Width, probe.Height); err != nil {
		writeError(w, err)
		return
	}

	base := strings.TrimSpace(storage.BaseName(header.Filename))
	if base == "" {
		base = "upload"
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = base
	}

	rel, err := h.storage.Save(base+"."+ext, data)
	if err != nil {
		logging.Error("Failed to store upload %q: %v", header.Filename, err)
		writeFailure(w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	asset := &database.Attachment{
		FilePath: rel,
		MimeType: mimeType,
		Title:    title,
		ByteSize: int64(len(data)),
		Width:    probe.Width,
		Height:   probe.Height,
	}
	if s := sessionFrom(ctx); s != nil {
		asset.AuthorID = &s.user.ID
	}

	id, err := h.db.CreateAttachment(ctx, asset)
	if err != nil {
		logging.Error("Failed to record upload %s: %v", rel, err)
		if derr := h.storage.Delete(rel); derr != nil {
			logging.Error("Failed to remove orphaned upload %s: %v", rel, derr)
		}
		writeFailure(w, http.StatusInternalServerError, editor.MsgRecordFailed)
		return
	}
	asset.ID = id

	logging.InfoWith(logging.Fields{"id": id, "file": rel, "mime_type": mimeType}, "asset uploaded")
	writeSuccess(w, http.StatusCreated, h.assetResponse(asset))
}

func (h *Handlers) assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, editor.MsgInvalidImageID)
		return 0, false
	}
	return id, true
}

// GetAsset returns one asset record.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	a, err := h.db.GetAttachment(r.Context(), id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Error("Failed to load asset %d: %v", id, err)
		}
		writeFailure(w, http.StatusNotFound, msgAssetNotFound)
		return
	}

	writeSuccess(w, http.StatusOK, h.assetResponse(a))
}

// DeleteAsset removes an asset record and its file.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	a, err := h.db.GetAttachment(r.Context(), id)
	if err != nil {
		writeFailure(w, http.StatusNotFound, msgAssetNotFound)
		return
	}

	if err := h.db.DeleteAttachment(r.Context(), id); err != nil {
		logging.Error("Failed to delete asset %d: %v", id, err)
		writeFailure(w, http.StatusInternalServerError, "Failed to delete asset.")
		return
	}
	if err := h.storage.Delete(a.FilePath); err != nil {
		logging.Warn("Asset %d deleted but file %s remains: %v", id, a.FilePath, err)
	}

	logging.Info("Deleted asset %d (%s)", id, a.FilePath)
	writeSuccess(w, http.StatusOK, messageData{Message: "Asset deleted."})
}

// ServeUploads serves stored files under /uploads/. Directory listings are
// not exposed.
func (h *Handlers) ServeUploads() http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.storage.Root())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/uploads/" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "private, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
