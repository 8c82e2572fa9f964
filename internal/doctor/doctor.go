package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/harshul/bbdev-cli/internal/ports"
	"github.com/harshul/bbdev-cli/internal/thermal"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ToolStatus represents the status of one external tool
type ToolStatus struct {
	Name      string
	Required  bool
	Installed bool
	Version   string
	Path      string
}

// Tool names an external program and how to ask it for a version
type Tool struct {
	Name        string
	VersionArgs []string
	Required    bool
}

// SimulatorTools are checked by default; none of them is required
var SimulatorTools = []Tool{
	{Name: "verilator", VersionArgs: []string{"--version"}},
	{Name: "vcs", VersionArgs: []string{"-ID"}},
	{Name: "firesim", VersionArgs: []string{"--help"}},
	{Name: "riscv64-unknown-elf-gcc", VersionArgs: []string{"--version"}},
}

// PortStatus describes the default agent port
type PortStatus struct {
	Port      int
	Available bool
	PID       int
}

// HostStats is a snapshot of machine resources
type HostStats struct {
	Hardware    thermal.HardwareInfo
	CPUPercent  float64
	MemoryUsed  uint64
	MemoryTotal uint64
	MemPercent  float64
	Thermal     thermal.ThermalStatus
	Jobs        int
}

// Options selects what to check
type Options struct {
	BbdevPath   string
	Workspace   string
	DefaultPort int
	Tools       []Tool // SimulatorTools when nil
}

// Diagnosis contains the full health check results
type Diagnosis struct {
	Bbdev     ToolStatus
	Tools     []ToolStatus
	Workspace string
	Port      PortStatus
	Host      HostStats
	Healthy   bool
	Issues    []string
	Warnings  []string
}

// Diagnose checks the bbdev installation and the machine it runs on
func Diagnose(ctx context.Context, opts Options) Diagnosis {
	d := Diagnosis{Workspace: opts.Workspace, Healthy: true}

	d.Bbdev = CheckTool(ctx, Tool{Name: opts.BbdevPath, VersionArgs: []string{"--version"}, Required: true})
	if !d.Bbdev.Installed {
		d.Healthy = false
		d.Issues = append(d.Issues, fmt.Sprintf("bbdev not found at %q; set bbdev_path in .bbdev.yaml", opts.BbdevPath))
	}

	tools := opts.Tools
	if tools == nil {
		tools = SimulatorTools
	}
	for _, t := range tools {
		st := CheckTool(ctx, t)
		d.Tools = append(d.Tools, st)
		if st.Installed {
			continue
		}
		if t.Required {
			d.Healthy = false
			d.Issues = append(d.Issues, t.Name+" is not installed")
		} else {
			d.Warnings = append(d.Warnings, t.Name+" not found on PATH")
		}
	}

	if info, err := os.Stat(opts.Workspace); err != nil || !info.IsDir() {
		d.Healthy = false
		d.Issues = append(d.Issues, fmt.Sprintf("workspace %s does not exist", opts.Workspace))
	}

	if opts.DefaultPort > 0 {
		d.Port = PortStatus{Port: opts.DefaultPort, Available: ports.IsPortAvailable(opts.DefaultPort)}
		if !d.Port.Available {
			d.Port.PID = ports.GetProcessOnPort(ctx, opts.DefaultPort)
			d.Warnings = append(d.Warnings, ports.GetPortStatus(opts.DefaultPort)+"; `bbx serve` will pick the next free port")
		}
	}

	d.Host = hostStats(ctx)
	if d.Host.Thermal.Level == "hot" {
		d.Warnings = append(d.Warnings, d.Host.Thermal.Message)
	}

	return d
}

// CheckTool looks a program up on PATH and asks for its version. A tool that
// is found but fails the version query still counts as installed.
func CheckTool(ctx context.Context, t Tool) ToolStatus {
	status := ToolStatus{Name: t.Name, Required: t.Required}
	if t.Name == "" {
		return status
	}

	path, err := exec.LookPath(t.Name)
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	// several simulators print their version to stderr
	output, _ := exec.CommandContext(ctx, path, t.VersionArgs...).CombinedOutput()
	status.Version = firstLine(string(output))
	return status
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func hostStats(ctx context.Context) HostStats {
	hw := thermal.DetectHardware(ctx)
	stats := HostStats{Hardware: hw}

	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsed = vm.Used
		stats.MemoryTotal = vm.Total
		stats.MemPercent = vm.UsedPercent
	}

	stats.Thermal = thermal.GetThermalStatus(ctx, hw)
	stats.Jobs = thermal.GetOptimalConcurrency(hw, 0)
	if stats.Thermal.RecommendedConcurrency < stats.Jobs {
		stats.Jobs = stats.Thermal.RecommendedConcurrency
	}
	return stats
}
