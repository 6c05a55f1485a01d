package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the variable that pins the worker count.
const OverrideEnv = "IMAGE_WORKERS"

// Count returns multiplier * GOMAXPROCS, at least 1 and at most limit
// (0 means no limit). IMAGE_WORKERS, when set to a positive integer, replaces
// the computed value but is still capped by limit.
func Count(multiplier float64, limit int) int {
	n := 0
	if raw := os.Getenv(OverrideEnv); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}

	if n == 0 {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU sizes CPU-bound work such as image filtering: one per CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO sizes I/O-bound work such as database access: two per CPU.
func ForIO(limit int) int {
	return Count(2.0, limit)
}
