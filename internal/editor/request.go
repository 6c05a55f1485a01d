package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"image-editor/internal/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Actions accepted by the editor endpoint.
const (
	ActionPreview     = "preview"
	ActionSave        = "save"
	ActionGetOriginal = "get_original"
)

// NonceAction is the action every editor nonce is issued for.
const NonceAction = "image_editor"

// Parameter ranges and the defaults used when a value is absent or unusable.
const (
	MinContrast, MaxContrast, DefaultContrast    = -1.0, 1.0, 0.0
	MinAmount, MaxAmount, DefaultAmount          = 0.0, 5.0, 0.0
	MinRadius, MaxRadius, DefaultRadius          = 0.0, 5.0, 1.0
	MinThreshold, MaxThreshold, DefaultThreshold = 0.0, 1.0, 0.0
)

// Param is a raw request value as received from a form or JSON body.
// Present distinguishes an absent field from an empty one.
type Param struct {
	Raw     string
	Present bool
}

// Value returns a present Param holding s.
func Value(s string) Param {
	return Param{Raw: s, Present: true}
}

// UnmarshalJSON accepts strings, numbers and null.
func (p *Param) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = Param{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*p = Value(n.String())
	return nil
}

// PreviewInput is the untrusted form of a preview request.
type PreviewInput struct {
	ImageID   Param
	Contrast  Param
	Amount    Param
	Radius    Param
	Threshold Param
}

// EditRequest holds validated, clamped filter parameters.
type EditRequest struct {
	ImageID   int64
	Contrast  float64
	Amount    float64
	Radius    float64
	Threshold float64
}

// filterParams are the parsed filter values before clamping.
type filterParams struct {
	Contrast  float64 `json:"contrast"`
	Amount    float64 `json:"amount"`
	Radius    float64 `json:"radius"`
	Threshold float64 `json:"threshold"`
}

// Validate reports the values outside their slider ranges.
func (p filterParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Contrast, validation.Min(MinContrast), validation.Max(MaxContrast)),
		validation.Field(&p.Amount, validation.Min(MinAmount), validation.Max(MaxAmount)),
		validation.Field(&p.Radius, validation.Min(MinRadius), validation.Max(MaxRadius)),
		validation.Field(&p.Threshold, validation.Min(MinThreshold), validation.Max(MaxThreshold)),
	)
}

// outOfRange names the fields clamping will change, in name order.
func (p filterParams) outOfRange() []string {
	errs, ok := p.Validate().(validation.Errors)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ParseImageID reads a positive asset id.
func ParseImageID(p Param) (int64, error) {
	id, err := parseImageID(p)
	if err != nil {
		countRejection(err)
	}
	return id, err
}

func parseImageID(p Param) (int64, error) {
	raw := strings.TrimSpace(p.Raw)
	if !p.Present || raw == "" || raw == "0" {
		return 0, validationError(ReasonMissingImage, MsgNoImage)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError(ReasonInvalidImageID, MsgInvalidImageID)
	}
	return id, nil
}

// ParsePreviewInput converts raw input into an EditRequest. Out-of-range
// numbers are clamped, not rejected.
func ParsePreviewInput(in PreviewInput) (EditRequest, error) {
	id, err := ParseImageID(in.ImageID)
	if err != nil {
		return EditRequest{}, err
	}

	raw := filterParams{
		Contrast:  parseFloat(in.Contrast, DefaultContrast),
		Amount:    parseFloat(in.Amount, DefaultAmount),
		Radius:    parseFloat(in.Radius, DefaultRadius),
		Threshold: parseFloat(in.Threshold, DefaultThreshold),
	}
	for _, field := range raw.outOfRange() {
		metrics.EditorClampedParams.WithLabelValues(field).Inc()
	}

	return EditRequest{
		ImageID:   id,
		Contrast:  clamp(raw.Contrast, MinContrast, MaxContrast),
		Amount:    clamp(raw.Amount, MinAmount, MaxAmount),
		Radius:    clamp(raw.Radius, MinRadius, MaxRadius),
		Threshold: clamp(raw.Threshold, MinThreshold, MaxThreshold),
	}, nil
}

// SaveInput is the untrusted form of a save request.
type SaveInput struct {
	ImageID   Param
	ImageData Param
}

// ParseSaveInput checks that a save request names an image and carries a
// payload. The payload itself is verified by SavePipeline.
func ParseSaveInput(in SaveInput) (int64, string, error) {
	id, err := ParseImageID(in.ImageID)
	if err != nil {
		return 0, "", err
	}
	if !in.ImageData.Present || in.ImageData.Raw == "" {
		err := validationError(ReasonPayload, MsgNoImageData)
		countRejection(err)
		return 0, "", err
	}
	return id, in.ImageData.Raw, nil
}

func parseFloat(p Param, def float64) float64 {
	if !p.Present {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
