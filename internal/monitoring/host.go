package monitoring

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine a benchmark ran on.
type HostInfo struct {
	Arch        string  `json:"arch"`
	Hostname    string  `json:"hostname"`
	Platform    string  `json:"platform"`
	CPUModel    string  `json:"cpu_model"`
	CPUCount    int     `json:"cpu_count"`
	CPUFreqMHz  float64 `json:"cpu_freq_mhz"`
	TotalMemory uint64  `json:"total_memory"`
	GoVersion   string  `json:"go_version"`
}

// HostStat collects host information. Fields gopsutil cannot read on this
// platform are left empty.
func HostStat() HostInfo {
	info := HostInfo{
		Arch:      runtime.GOARCH,
		CPUCount:  runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}

	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPUModel = cpuStat[0].ModelName
		totalFreq := 0.0
		for _, c := range cpuStat {
			totalFreq += c.Mhz
		}
		info.CPUFreqMHz = totalFreq / float64(len(cpuStat))
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vmStat.Total
	}
	return info
}
