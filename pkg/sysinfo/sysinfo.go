package sysinfo

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type SystemInfo struct {
	OS           string  `json:"os"`
	Architecture string  `json:"architecture"`
	CPUModel     string  `json:"cpu_model"`
	CPUCores     int     `json:"cpu_cores"`
	CPUThreads   int     `json:"cpu_threads"`
	TotalMemory  uint64  `json:"total_memory"`
	GoVersion    string  `json:"go_version"`
	Hostname     string  `json:"hostname"`
	Platform     string  `json:"platform"`
	LoadAverage  float64 `json:"load_average"`
}

// Usage is a point-in-time view of host and process resource use, or the
// difference between two such views.
type Usage struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryUsed uint64  `json:"memory_used"`
	ProcessRSS uint64  `json:"process_rss"`
	Goroutines int     `json:"goroutines"`
}

func Collect() (*SystemInfo, error) {
	info := &SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = strings.TrimSpace(cpuInfo[0].ModelName)
	}
	if threads, err := cpu.Counts(true); err == nil {
		info.CPUThreads = threads
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
	}
	if loadAvg, err := load.Avg(); err == nil {
		info.LoadAverage = loadAvg.Load1
	}

	return info, nil
}

// SampleUsage reads the current usage. Fields it cannot read stay zero.
func SampleUsage() Usage {
	usage := Usage{Goroutines: runtime.NumGoroutine()}

	if percent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percent) > 0 {
		usage.CPUPercent = percent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		usage.MemoryUsed = memInfo.Used
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfo(); err == nil {
			usage.ProcessRSS = memInfo.RSS
		}
	}

	return usage
}

// Delta returns u minus before. Memory that shrank is reported as zero.
func (u Usage) Delta(before Usage) Usage {
	return Usage{
		CPUPercent: u.CPUPercent - before.CPUPercent,
		MemoryUsed: positiveDelta(u.MemoryUsed, before.MemoryUsed),
		ProcessRSS: positiveDelta(u.ProcessRSS, before.ProcessRSS),
		Goroutines: u.Goroutines - before.Goroutines,
	}
}

func positiveDelta(after, before uint64) uint64 {
	if after > before {
		return after - before
	}
	return 0
}
