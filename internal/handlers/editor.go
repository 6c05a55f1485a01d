package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/logging"
	"image-editor/internal/metrics"
	"image-editor/internal/ratelimit"
)

// editorRequest is the decoded body of POST /api/editor. Every field the
// editor page may send is listed; JSON bodies with other fields are rejected.
type editorRequest struct {
	Action    string       `json:"action"`
	Nonce     string       `json:"nonce"`
	AjaxNonce string       `json:"_ajax_nonce"`
	ImageID   editor.Param `json:"image_id"`
	Contrast  editor.Param `json:"contrast"`
	Amount    editor.Param `json:"amount"`
	Radius    editor.Param `json:"radius"`
	Threshold editor.Param `json:"threshold"`
	ImageData editor.Param `json:"image_data"`
}

func (r *editorRequest) nonce() string {
	if r.Nonce != "" {
		return r.Nonce
	}
	return r.AjaxNonce
}

type previewResponse struct {
	Preview        string `json:"preview"`
	OriginalFormat string `json:"original_format"`
	MimeType       string `json:"mime_type"`
}

type saveResponse struct {
	NewAttachmentID int64  `json:"new_attachment_id"`
	Message         string `json:"message"`
	EditLink        string `json:"edit_link"`
}

type originalResponse struct {
	ImageID     int64  `json:"image_id"`
	OriginalURL string `json:"original_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	MimeType    string `json:"mime_type"`
	Title       string `json:"title"`
}

// maxFormMemory is the multipart memory threshold before parts spill to disk.
const maxFormMemory = 32 << 20

// EditorAction is the single entry point of the editor page. It runs the
// request through authentication, rate limiting, nonce verification and input
// validation before dispatching on action.
func (h *Handlers) EditorAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ip := ratelimit.ClientIP(r)
	fields := logging.Fields{"ip": ip}

	s := h.authenticate(w, r)
	if s == nil {
		h.editorFailure(w, "", fields, editor.ErrUnauthorized(), http.StatusUnauthorized)
		return
	}
	fields["user"] = s.user.ID
	if !s.user.Can(database.CapabilityUploadFiles) {
		h.editorFailure(w, "", fields, editor.ErrUnauthorized(), 0)
		return
	}

	mediaType, err := editorMediaType(r)
	if err != nil {
		h.editorFailure(w, "", fields, err, 0)
		return
	}

	// A form body that leads with its action is throttled before the
	// payload is read.
	identity := ratelimit.Identity{IP: ip, UserID: s.user.ID}
	var throttled string
	if mediaType == formMediaType {
		if action := peekFormAction(r); knownAction(action) {
			if h.limiter.ShouldThrottle(r.Context(), identity, action) {
				fields["action"] = action
				h.editorFailure(w, action, fields, editor.ErrRateLimited(action), 0)
				return
			}
			throttled = action
		}
	}

	req, err := h.decodeEditorRequest(w, r, mediaType)
	if err != nil {
		h.editorFailure(w, "", fields, err, 0)
		return
	}
	fields["action"] = req.Action
	if req.ImageID.Present {
		fields["image_id"] = req.ImageID.Raw
	}

	if !knownAction(req.Action) {
		h.editorFailure(w, "", fields, editor.ErrUnknownAction(req.Action), 0)
		return
	}

	if req.Action != throttled && h.limiter.ShouldThrottle(r.Context(), identity, req.Action) {
		h.editorFailure(w, req.Action, fields, editor.ErrRateLimited(req.Action), 0)
		return
	}

	if err := h.nonces.Verify(req.nonce(), s.token, editor.NonceAction); err != nil {
		h.editorFailure(w, req.Action, fields, editor.ErrSecurityCheck(err), 0)
		return
	}

	var data interface{}
	switch req.Action {
	case editor.ActionPreview:
		data, err = h.editorPreview(r.Context(), req)
	case editor.ActionSave:
		data, err = h.editorSave(r.Context(), req, s.user.ID)
	case editor.ActionGetOriginal:
		data, err = h.editorOriginal(r.Context(), req)
	}
	if err != nil {
		h.editorFailure(w, req.Action, fields, err, 0)
		return
	}

	metrics.EditorRequestsTotal.WithLabelValues(req.Action, "success").Inc()
	logging.DebugWith(fields, "editor request completed in %v", time.Since(start))
	writeSuccess(w, http.StatusOK, data)
}

func (h *Handlers) editorPreview(ctx context.Context, in *editorRequest) (interface{}, error) {
	req, err := editor.ParsePreviewInput(editor.PreviewInput{
		ImageID:   in.ImageID,
		Contrast:  in.Contrast,
		Amount:    in.Amount,
		Radius:    in.Radius,
		Threshold: in.Threshold,
	})
	if err != nil {
		return nil, err
	}

	src, err := h.validator.Source(ctx, req.ImageID)
	if err != nil {
		return nil, err
	}

	artifact, err := h.preview.Generate(ctx, src, req)
	if err != nil {
		return nil, err
	}

	return previewResponse{
		Preview:        artifact.DataURL,
		OriginalFormat: artifact.OriginalFormat,
		MimeType:       artifact.OriginalMimeType,
	}, nil
}

func (h *Handlers) editorSave(ctx context.Context, in *editorRequest, userID int64) (interface{}, error) {
	id, payload, err := editor.ParseSaveInput(editor.SaveInput{
		ImageID:   in.ImageID,
		ImageData: in.ImageData,
	})
	if err != nil {
		return nil, err
	}

	src, err := h.validator.Source(ctx, id)
	if err != nil {
		return nil, err
	}

	asset, err := h.save.Save(ctx, src, payload, &userID)
	if err != nil {
		return nil, err
	}

	return saveResponse{
		NewAttachmentID: asset.ID,
		Message:         editor.MsgSaved,
		EditLink:        asset.EditLink,
	}, nil
}

func (h *Handlers) editorOriginal(ctx context.Context, in *editorRequest) (interface{}, error) {
	id, err := editor.ParseImageID(in.ImageID)
	if err != nil {
		return nil, err
	}

	src, err := h.validator.Source(ctx, id)
	if err != nil {
		return nil, err
	}

	return originalResponse{
		ImageID:     src.ID,
		OriginalURL: h.storage.URL(src.FilePath),
		Width:       src.Width,
		Height:      src.Height,
		MimeType:    src.MimeType,
		Title:       src.BaseName(),
	}, nil
}

// editorFailure logs and counts a failed editor request and writes the
// failure envelope. status overrides the kind's default when non-zero.
func (h *Handlers) editorFailure(w http.ResponseWriter, action string, fields logging.Fields, err error, status int) {
	kind := editor.KindOf(err)
	if kind.Incident() {
		logging.ErrorWith(fields, "editor request failed: %v", err)
	} else {
		logging.DebugWith(fields, "editor request rejected (%s): %v", kind, err)
	}

	if action != "" {
		metrics.EditorRequestsTotal.WithLabelValues(action, kind.String()).Inc()
	}

	if status == 0 {
		status = statusFor(kind)
	}
	writeFailure(w, status, editor.MessageOf(err))
}

// editorFieldsAllowance covers the non-payload fields and the data URL prefix.
const editorFieldsAllowance = 64 << 10

// maxEditorBody bounds the request body to what the largest acceptable
// payload needs in the given encoding. Form encoding escapes '+', '/' and '='
// as three bytes each, so a base64 payload can triple in the worst case; JSON
// encoders may write '/' as "\/". The exact ceiling is enforced on the
// decoded bytes by the save pipeline.
func (h *Handlers) maxEditorBody(mediaType string) int64 {
	maxFile := h.validator.Limits().MaxFileSize
	encoded := (maxFile + 2) / 3 * 4
	switch mediaType {
	case formMediaType:
		encoded *= 3
	case "application/json":
		encoded *= 2
	}
	return encoded + editorFieldsAllowance
}

const formMediaType = "application/x-www-form-urlencoded"

func knownAction(action string) bool {
	switch action {
	case editor.ActionPreview, editor.ActionSave, editor.ActionGetOriginal:
		return true
	}
	return false
}

// editorMediaType returns the body's media type. A missing Content-Type is
// read as a form body, which is what the editor page posts.
func editorMediaType(r *http.Request) (string, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return formMediaType, nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", editor.ErrBadRequest(err)
	}
	return mt, nil
}

// actionPeekSize is how much of a form body is inspected for a leading
// action field.
const actionPeekSize = 256

// peekFormAction returns the value of the first form field when it is named
// action, or "" otherwise. The peeked bytes stay in the body for the full
// parse.
func peekFormAction(r *http.Request) string {
	br := bufio.NewReaderSize(r.Body, actionPeekSize)
	r.Body = struct {
		io.Reader
		io.Closer
	}{br, r.Body}

	head, _ := br.Peek(actionPeekSize)
	field, _, complete := bytes.Cut(head, []byte("&"))
	if !complete && len(head) == actionPeekSize {
		return ""
	}
	key, value, ok := bytes.Cut(field, []byte("="))
	if !ok || string(key) != "action" {
		return ""
	}
	action, err := url.QueryUnescape(string(value))
	if err != nil {
		return ""
	}
	return action
}

// decodeEditorRequest reads a form-encoded, multipart or JSON body.
func (h *Handlers) decodeEditorRequest(w http.ResponseWriter, r *http.Request, mediaType string) (*editorRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxEditorBody(mediaType))

	var req editorRequest
	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, bodyError(err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, editor.ErrBadRequest(fmt.Errorf("trailing data after JSON body"))
		}
		return &req, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, bodyError(err)
		}
		return formRequest(r.PostForm), nil

	case formMediaType:
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		return formRequest(r.PostForm), nil

	default:
		return nil, editor.ErrBadRequest(fmt.Errorf("unsupported content type %q", mediaType))
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return editor.ErrRequestTooLarge(err)
	}
	return editor.ErrBadRequest(err)
}

func formRequest(form url.Values) *editorRequest {
	return &editorRequest{
		Action:    form.Get("action"),
		Nonce:     form.Get("nonce"),
		AjaxNonce: form.Get("_ajax_nonce"),
		ImageID:   formParam(form, "image_id"),
		Contrast:  formParam(form, "contrast"),
		Amount:    formParam(form, "amount"),
		Radius:    formParam(form, "radius"),
		Threshold: formParam(form, "threshold"),
		ImageData: formParam(form, "image_data"),
	}
}

func formParam(form url.Values, key string) editor.Param {
	if vs, ok := form[key]; ok && len(vs) > 0 {
		return editor.Value(vs[0])
	}
	return editor.Param{}
}
