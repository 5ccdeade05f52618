package tuner

import (
	"runtime"
	"testing"
)

const gib = 1024 * 1024 * 1024

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d (runtime.NumCPU())", resources.CPUCores, runtime.NumCPU())
	}

	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}

	if resources.AvailableRAM <= 0 {
		t.Errorf("AvailableRAM = %d, want > 0", resources.AvailableRAM)
	}

	if resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM (%d) > TotalRAM (%d), available should be <= total",
			resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		resources   SystemResources
		wantWorkers int
		wantWindow  int
	}{
		{
			name:        "single core",
			resources:   SystemResources{CPUCores: 1, TotalRAM: 2 * gib, AvailableRAM: 1 * gib},
			wantWorkers: 2,
			wantWindow:  8,
		},
		{
			name:        "medium system (8 cores, 16GB RAM)",
			resources:   SystemResources{CPUCores: 8, TotalRAM: 16 * gib, AvailableRAM: 8 * gib},
			wantWorkers: 16,
			wantWindow:  64,
		},
		{
			name:        "large system (128 cores) is capped",
			resources:   SystemResources{CPUCores: 128, TotalRAM: 256 * gib, AvailableRAM: 128 * gib},
			wantWorkers: 64,
			wantWindow:  256,
		},
		{
			name:        "low memory shrinks the window to the worker count",
			resources:   SystemResources{CPUCores: 8, TotalRAM: 64 * 1024 * 1024, AvailableRAM: 16 * 1024 * 1024},
			wantWorkers: 16,
			wantWindow:  16,
		},
		{
			name:        "unknown memory",
			resources:   SystemResources{CPUCores: 4},
			wantWorkers: 8,
			wantWindow:  32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.resources)

			if got.Workers != tt.wantWorkers {
				t.Errorf("Workers = %d, want %d", got.Workers, tt.wantWorkers)
			}
			if got.Window != tt.wantWindow {
				t.Errorf("Window = %d, want %d", got.Window, tt.wantWindow)
			}
		})
	}
}

func TestCalculateWithOverrides(t *testing.T) {
	resources := SystemResources{
		CPUCores:     8,
		TotalRAM:     16 * gib,
		AvailableRAM: 8 * gib,
	}

	tests := []struct {
		name           string
		workerOverride int
		wantWorkers    int
		wantWindow     int
	}{
		{name: "no override (0)", workerOverride: 0, wantWorkers: 16, wantWindow: 64},
		{name: "negative keeps default", workerOverride: -3, wantWorkers: 16, wantWindow: 64},
		{name: "override with 3", workerOverride: 3, wantWorkers: 3, wantWindow: 12},
		{name: "override capped at 64", workerOverride: 100, wantWorkers: 64, wantWindow: 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWithOverrides(resources, tt.workerOverride)

			if got.Workers != tt.wantWorkers {
				t.Errorf("Workers = %d, want %d", got.Workers, tt.wantWorkers)
			}
			if got.Window != tt.wantWindow {
				t.Errorf("Window = %d, want %d", got.Window, tt.wantWindow)
			}
		})
	}
}

func TestCalculate_Integration(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() failed: %v", err)
	}

	config := Calculate(resources)

	if config.Workers < minWorkers || config.Workers > MaxWorkers {
		t.Errorf("Workers = %d, want in range [%d, %d]", config.Workers, minWorkers, MaxWorkers)
	}
	if config.Window < config.Workers || config.Window > maxWindow {
		t.Errorf("Window = %d, want in range [%d, %d]", config.Window, config.Workers, maxWindow)
	}
}
