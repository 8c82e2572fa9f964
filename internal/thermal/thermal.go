package thermal

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HardwareInfo contains detected hardware information
type HardwareInfo struct {
	NumCPU         int
	MemoryTotal    uint64
	IsDarwin       bool
	IsMacBookAir   bool
	IsAppleSilicon bool
	ModelName      string
	Platform       string
}

// MemoryPerJob is a rough peak for one Verilator C++ compile job
const MemoryPerJob = 2 << 30

// DetectHardware detects the current hardware configuration
func DetectHardware(ctx context.Context) HardwareInfo {
	info := HardwareInfo{
		NumCPU:   runtime.NumCPU(),
		IsDarwin: runtime.GOOS == "darwin",
		Platform: runtime.GOOS,
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.NumCPU = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
	}
	if hi, err := host.InfoWithContext(ctx); err == nil && hi.Platform != "" {
		info.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
	}

	if info.IsDarwin {
		info.ModelName = detectMacModel(ctx)
		info.IsMacBookAir = strings.Contains(strings.ToLower(info.ModelName), "macbook air")
		info.IsAppleSilicon = runtime.GOARCH == "arm64"
	}

	return info
}

// detectMacModel returns the Mac model identifier
func detectMacModel(ctx context.Context) string {
	output, err := exec.CommandContext(ctx, "sysctl", "-n", "hw.model").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// GetOptimalConcurrency returns the job count for parallel simulator builds.
// A positive configured value always wins.
func GetOptimalConcurrency(hw HardwareInfo, configured int) int {
	if configured > 0 {
		return configured
	}

	optimal := hw.NumCPU

	// passive cooling throttles under sustained compile load
	if hw.IsMacBookAir {
		optimal = hw.NumCPU / 2
	} else if hw.IsDarwin && hw.IsAppleSilicon {
		optimal = (hw.NumCPU * 3) / 4
	}

	if hw.MemoryTotal > 0 {
		if byMem := int(hw.MemoryTotal / MemoryPerJob); byMem < optimal {
			optimal = byMem
		}
	}

	if optimal < 1 {
		optimal = 1
	}
	return optimal
}

// ThermalStatus represents the current thermal state
type ThermalStatus struct {
	// Level is "cool", "warm", "hot" or "unknown"
	Level string
	// CPUTemp is in degrees Celsius, -1 when no sensor is readable
	CPUTemp float64
	// RecommendedConcurrency is the job count the thermal state allows
	RecommendedConcurrency int
	Message                string
}

const (
	warmThreshold = 80.0
	hotThreshold  = 92.0
)

// GetThermalStatus reads CPU sensors and scales the job count down under heat
func GetThermalStatus(ctx context.Context, hw HardwareInfo) ThermalStatus {
	return classify(CPUTemperature(ctx), hw.NumCPU)
}

func classify(temp float64, numCPU int) ThermalStatus {
	status := ThermalStatus{
		Level:                  "cool",
		CPUTemp:                temp,
		RecommendedConcurrency: numCPU,
		Message:                "System is running cool",
	}
	switch {
	case temp < 0:
		status.Level = "unknown"
		status.Message = "No CPU temperature sensor available"
	case temp >= hotThreshold:
		status.Level = "hot"
		status.RecommendedConcurrency = numCPU / 4
		status.Message = fmt.Sprintf("CPU at %.0f°C, throttling builds", temp)
	case temp >= warmThreshold:
		status.Level = "warm"
		status.RecommendedConcurrency = numCPU / 2
		status.Message = fmt.Sprintf("CPU at %.0f°C", temp)
	}
	if status.RecommendedConcurrency < 1 {
		status.RecommendedConcurrency = 1
	}
	return status
}

// RecommendedJobs is the value used for a `job` argument the user left unset
func RecommendedJobs(ctx context.Context) int {
	hw := DetectHardware(ctx)
	jobs := GetOptimalConcurrency(hw, 0)
	if st := GetThermalStatus(ctx, hw); st.RecommendedConcurrency < jobs {
		jobs = st.RecommendedConcurrency
	}
	return jobs
}

// CPUTemperature returns the hottest CPU sensor reading, or -1
func CPUTemperature(ctx context.Context) float64 {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return -1
	}

	hottest := -1.0
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if !strings.Contains(key, "cpu") && !strings.Contains(key, "coretemp") && !strings.Contains(key, "k10temp") {
			continue
		}
		if t.Temperature > hottest && t.Temperature < 120 {
			hottest = t.Temperature
		}
	}
	if hottest > 0 {
		return hottest
	}

	// no CPU-labelled sensor; Apple Silicon reports unlabelled die sensors
	for _, t := range temps {
		if t.Temperature > 0 && t.Temperature < 120 {
			return t.Temperature
		}
	}
	return -1
}

// FormatHardwareInfo returns a human-readable hardware description
func FormatHardwareInfo(hw HardwareInfo) string {
	parts := []string{fmt.Sprintf("%d cores", hw.NumCPU)}

	if hw.MemoryTotal > 0 {
		parts = append(parts, fmt.Sprintf("%.0f GB RAM", float64(hw.MemoryTotal)/(1<<30)))
	}
	if hw.IsDarwin && hw.ModelName != "" {
		parts = append(parts, hw.ModelName)
	}
	if hw.IsAppleSilicon {
		parts = append(parts, "Apple Silicon")
	}
	if hw.Platform != "" {
		parts = append(parts, hw.Platform)
	}

	return strings.Join(parts, ", ")
}
