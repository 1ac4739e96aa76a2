package workers

import (
	"runtime"
	"testing"
)

func TestOverride(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"", 0, false},
		{"3", 3, true},
		{"0", 0, false},
		{"-2", 0, false},
		{"many", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.raw)
			got, ok := Override()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Override() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestForCPU(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name     string
		override string
		limit    int
		want     int
	}{
		{"one per cpu", "", 0, cpus},
		{"capped by chunk size", "", 1, 1},
		{"override used", "3", 0, 3},
		{"override capped by chunk size", "12", 5, 5},
		{"invalid override falls back to cpus", "many", 0, cpus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.override)
			if got := ForCPU(tt.limit); got != tt.want {
				t.Errorf("ForCPU(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(0, 0); got != 1 {
		t.Errorf("clamp(0, 0) = %d, want 1", got)
	}
	if got := clamp(8, 5); got != 5 {
		t.Errorf("clamp(8, 5) = %d, want 5", got)
	}
	if got := clamp(2, 5); got != 2 {
		t.Errorf("clamp(2, 5) = %d, want 2", got)
	}
}
