package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride pins the number of conversions a batch chunk runs at once.
const EnvOverride = "TRANSCODE_WORKERS"

// Override returns the positive worker count set through TRANSCODE_WORKERS.
func Override() (int, bool) {
	raw := os.Getenv(EnvOverride)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ForCPU returns how many conversions may run concurrently: the override when
// set, otherwise one per CPU available to the container (GOMAXPROCS). The
// result is at least 1 and at most limit; a limit of 0 leaves it uncapped.
func ForCPU(limit int) int {
	n, ok := Override()
	if !ok {
		n = runtime.GOMAXPROCS(0)
	}
	return clamp(n, limit)
}

func clamp(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
