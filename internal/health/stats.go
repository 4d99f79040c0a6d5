// Package health reports process statistics for the /health endpoint.
package health

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Memory struct {
	RSS       uint64 `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
	External  uint64 `json:"external"`
}

type Stats struct {
	Uptime float64 `json:"uptime"`
	Memory Memory  `json:"memory"`
}

var rssFn = processRSS

// Snapshot collects uptime in seconds since started and current memory use.
// Heap figures come from the Go runtime; External is memory the runtime
// obtained from the OS beyond the heap.
func Snapshot(started time.Time) Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rss, err := rssFn()
	if err != nil {
		rss = ms.Sys
	}

	return Stats{
		Uptime: time.Since(started).Seconds(),
		Memory: Memory{
			RSS:       rss,
			HeapTotal: ms.HeapSys,
			HeapUsed:  ms.HeapAlloc,
			External:  ms.Sys - ms.HeapSys,
		},
	}
}

func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
