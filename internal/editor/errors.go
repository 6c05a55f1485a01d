package editor

import (
	"errors"
	"fmt"

	"image-editor/internal/metrics"
)

// Kind classifies editor failures. Every kind is reported to the client with
// the same envelope; the kind only selects the status code and log level.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindSecurity
	KindRateLimit
	KindValidation
	KindNotFound
	KindProcessing
	KindDecode
	KindPersistence
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindAuthorization: "authorization",
	KindSecurity:      "security",
	KindRateLimit:     "rate_limit",
	KindValidation:    "validation",
	KindNotFound:      "not_found",
	KindProcessing:    "processing",
	KindDecode:        "decode",
	KindPersistence:   "persistence",
}

// String returns the metrics label for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Incident reports whether failures of this kind are logged as errors.
// Validation, auth and throttling failures are expected traffic.
func (k Kind) Incident() bool {
	switch k {
	case KindProcessing, KindPersistence, KindUnknown:
		return true
	}
	return false
}

// Validation rejection reasons.
const (
	ReasonMissingImage    = "missing_image"
	ReasonInvalidImageID  = "invalid_image_id"
	ReasonFileTooLarge    = "file_too_large"
	ReasonUnreadable      = "unreadable_image"
	ReasonDimensions      = "dimensions"
	ReasonMemory          = "memory"
	ReasonPayload         = "payload"
	ReasonUnsupportedType = "unsupported_type"
)

// User-facing messages.
const (
	MsgNoPermission      = "You do not have permission to perform this action."
	MsgTooManyRequests   = "Too many requests. Please wait a moment before trying again."
	MsgTooManySaves      = "Too many save requests. Please wait a moment before trying again."
	MsgSecurityCheck     = "Security check failed."
	MsgNoImage           = "No image selected."
	MsgInvalidImageID    = "Invalid image ID."
	MsgInvalidAttachment = "Invalid image attachment."
	MsgFileNotFound      = "Image file not found on server."
	MsgFileTooLarge      = "Image file is too large to process."
	MsgNoDimensions      = "Unable to read image dimensions."
	MsgMemory            = "Image is too large to process with current memory limits."
	MsgNoImageData       = "No image data provided."
	MsgInvalidFormat     = "Invalid image data format."
	MsgDecodeFailed      = "Failed to decode image data."
	MsgNotAnImage        = "Decoded data is not a valid image."
	MsgUnsupportedType   = "Unsupported image type."
	MsgSaved             = "Image saved successfully!"
	MsgRecordFailed      = "Failed to create image attachment."
	MsgBadRequest        = "Invalid request."
	MsgUnknownAction     = "Unknown editor action."
)

// Error is a classified editor failure. Message is safe to show to the
// client; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unexpected error occurred."
}

// countRejection records validation failures by reason.
func countRejection(err error) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation && e.Reason != "" {
		metrics.EditorValidationRejections.WithLabelValues(e.Reason).Inc()
	}
}

func newError(kind Kind, reason, message string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

// ErrUnauthorized is returned when the caller lacks the upload capability.
func ErrUnauthorized() *Error {
	return newError(KindAuthorization, "", MsgNoPermission, nil)
}

// ErrSecurityCheck is returned for a missing or invalid nonce.
func ErrSecurityCheck(cause error) *Error {
	return newError(KindSecurity, "", MsgSecurityCheck, cause)
}

// ErrRateLimited is returned when the caller exceeded the action's limit.
func ErrRateLimited(action string) *Error {
	msg := MsgTooManyRequests
	if action == ActionSave {
		msg = MsgTooManySaves
	}
	return newError(KindRateLimit, "", msg, nil)
}

// ErrBadRequest is returned for a body that cannot be decoded.
func ErrBadRequest(cause error) *Error {
	return newError(KindValidation, "", MsgBadRequest, cause)
}

// ErrUnknownAction is returned for an action the editor does not handle.
func ErrUnknownAction(action string) *Error {
	return newError(KindValidation, "", MsgUnknownAction, fmt.Errorf("action %q", action))
}

// ErrRequestTooLarge is returned when the request body exceeds what any
// acceptable payload could need.
func ErrRequestTooLarge(cause error) *Error {
	err := newError(KindValidation, ReasonFileTooLarge, MsgFileTooLarge, cause)
	countRejection(err)
	return err
}

func validationError(reason, message string) *Error {
	return newError(KindValidation, reason, message, nil)
}

func notFoundError(message string, cause error) *Error {
	return newError(KindNotFound, "", message, cause)
}

func processingError(cause error) *Error {
	return newError(KindProcessing, "", fmt.Sprintf("Image processing failed: %s", cause), cause)
}

func decodeError(message string, cause error) *Error {
	return newError(KindDecode, ReasonPayload, message, cause)
}

func persistenceError(message string, cause error) *Error {
	return newError(KindPersistence, "", message, cause)
}
