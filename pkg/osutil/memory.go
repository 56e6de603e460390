package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this value when the memory is not restricted.
const unrestrictedMemoryLimit = 9223372036854771712

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	totalMemory := memory.TotalMemory()
	for _, location := range cgroupMemoryLimitLocations {
		if limit, ok := readCgroupLimit(location); ok && limit < totalMemory {
			return limit
		}
	}
	return totalMemory
}

func readCgroupLimit(location string) (uint64, bool) {
	raw, err := os.ReadFile(location)
	if err != nil {
		return 0, false
	}
	return parseCgroupLimit(string(raw))
}

func parseCgroupLimit(raw string) (uint64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 || limit == unrestrictedMemoryLimit {
		return 0, false
	}
	return limit, true
}
