package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// ResourceUsage is a point-in-time sample of the converter process
type ResourceUsage struct {
	MemoryRSS             uint64
	MemoryVMS             uint64
	HeapAlloc             uint64
	SystemMemoryAvailable uint64
	GoroutineCount        int
}

// SampleResources samples the memory of the current process. Heap and
// goroutine figures are always filled; process and system figures are
// left zero when the platform does not expose them.
func SampleResources() (*ResourceUsage, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	usage := &ResourceUsage{
		HeapAlloc:      memStats.HeapAlloc,
		GoroutineCount: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return usage, recoerrors.Wrap(err, recoerrors.ErrorTypeInternal, "failed to inspect process")
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return usage, recoerrors.Wrap(err, recoerrors.ErrorTypeInternal, "failed to read process memory")
	}
	usage.MemoryRSS = memInfo.RSS
	usage.MemoryVMS = memInfo.VMS

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryAvailable = vmStat.Available
	}
	return usage, nil
}
