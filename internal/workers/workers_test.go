package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")
	procs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu", 1.0, 0, procs},
		{"two per cpu", 2.0, 0, procs * 2},
		{"capped", 2.0, 1, 1},
		{"zero multiplier floors at one", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
		limit    int
		want     int
	}{
		{"override", "6", 0, 6},
		{"override capped", "6", 4, 4},
		{"invalid ignored", "abc", 0, runtime.GOMAXPROCS(0)},
		{"negative ignored", "-2", 0, runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.override)
			if got := ForCPU(tt.limit); got != tt.want {
				t.Errorf("ForCPU(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestForIOAtLeastForCPU(t *testing.T) {
	t.Setenv(OverrideEnv, "")
	if ForIO(0) < ForCPU(0) {
		t.Errorf("ForIO(0) = %d < ForCPU(0) = %d", ForIO(0), ForCPU(0))
	}
}
