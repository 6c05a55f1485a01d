package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"image-editor/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit handed to the Go heap.
// The remainder covers libvips allocations and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the runtime soft memory limit from the environment.
func ConfigureFromEnv() ConfigResult {
	if raw := os.Getenv("GOMEMLIMIT"); raw != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := RuntimeLimit(); limit > 0 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", raw)
		return result
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving runtime memory limit unset")
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	limit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(limit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(limit), ratio*100, FormatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q invalid (want 0.0-1.0), using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// RuntimeLimit returns the current runtime soft memory limit, or 0 when none
// is set.
func RuntimeLimit() int64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return 0
	}
	return limit
}

// FormatBytes formats a byte count using binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
