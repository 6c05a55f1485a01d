package memory

const (
	// BytesPerPixel is the decoded size of one RGBA pixel.
	BytesPerPixel = 4
	// WorkingCopies is how many full-size buffers a filter chain may hold.
	WorkingCopies = 3
	// DefaultCeiling applies when neither the runtime limit nor a fallback is set.
	DefaultCeiling int64 = 256 << 20
)

// Budget bounds the estimated working memory of a single decode.
type Budget struct {
	Ceiling int64
	Source  string
}

// NewBudget uses the runtime soft limit when one is set, then fallback, then
// DefaultCeiling.
func NewBudget(fallback int64) Budget {
	if limit := RuntimeLimit(); limit > 0 {
		return Budget{Ceiling: limit, Source: "runtime"}
	}
	if fallback > 0 {
		return Budget{Ceiling: fallback, Source: "config"}
	}
	return Budget{Ceiling: DefaultCeiling, Source: "default"}
}

// EstimateDecode returns the peak bytes needed to decode and filter a
// width x height image.
func EstimateDecode(width, height int) int64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	return int64(width) * int64(height) * BytesPerPixel * WorkingCopies
}

// Fits reports whether a width x height image can be processed.
func (b Budget) Fits(width, height int) bool {
	return EstimateDecode(width, height) <= b.Ceiling
}
