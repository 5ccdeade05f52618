package tuner

// Worker configuration limits.
const (
	// MaxWorkers caps the number of concurrent checksums.
	MaxWorkers = 64

	// minWorkers is the smallest automatic worker count. Hashing waits on
	// disk, so two workers help even on a single core.
	minWorkers = 2

	// windowPerWorker is how many entries may wait for reassembly per
	// worker before the reader blocks.
	windowPerWorker = 4

	// maxWindow bounds the reassembly window.
	maxWindow = 4096
)

// Memory-based window sizing constants.
const (
	// bytesPerEntry estimates the memory held by one queued entry: the
	// entry itself plus an in-flight 64 KiB chunk buffer.
	bytesPerEntry = 68 * 1024

	// windowMemoryFraction is the share of available RAM the window may use.
	windowMemoryFraction = 0.01
)

// OptimalConfig is the tuned hashing configuration.
type OptimalConfig struct {
	// Workers is the number of concurrent checksums.
	Workers int

	// Window is the number of entries held for in-order emission.
	Window int
}

// Calculate returns the configuration for resources.
//
//   - Workers: NumCPU * 2, at least 2, at most 64. Checksums are mostly
//     I/O bound.
//   - Window: 4 entries per worker, reduced when available RAM is small,
//     never below the worker count.
func Calculate(resources SystemResources) OptimalConfig {
	workers := resources.CPUCores * 2
	workers = max(workers, minWorkers)
	workers = min(workers, MaxWorkers)

	return OptimalConfig{
		Workers: workers,
		Window:  calculateWindow(workers, resources.AvailableRAM),
	}
}

// CalculateWithOverrides applies a user worker count to the calculated
// config. A workerOverride of 0 or less keeps the calculated value; any
// override is capped at 64 and the window follows it.
func CalculateWithOverrides(resources SystemResources, workerOverride int) OptimalConfig {
	config := Calculate(resources)

	if workerOverride > 0 {
		config.Workers = min(workerOverride, MaxWorkers)
		config.Window = calculateWindow(config.Workers, resources.AvailableRAM)
	}

	return config
}

func calculateWindow(workers int, availableRAM int64) int {
	window := workers * windowPerWorker

	if availableRAM > 0 {
		budget := int(float64(availableRAM) * windowMemoryFraction / bytesPerEntry)
		window = min(window, budget)
	}

	window = max(window, workers)
	return min(window, maxWindow)
}
