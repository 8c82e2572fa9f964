package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/harshul/bbdev-cli/internal/catalog"
	"github.com/harshul/bbdev-cli/internal/doctor"
	"github.com/harshul/bbdev-cli/internal/history"
	"github.com/harshul/bbdev-cli/internal/server"
	"github.com/harshul/bbdev-cli/internal/thermal"
)

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatDuration renders d the way a person reads a stopwatch
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// RenderOperations lists the catalog grouped by command
func RenderOperations(cat *catalog.Catalog) string {
	var b strings.Builder
	for i, cmd := range cat.Commands() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(cmd) + "\n")
		for _, op := range cat.Operations(cmd) {
			b.WriteString("  " + valueStyle.Render(fmt.Sprintf("%-10s", op.Name)))
			if op.Description != "" {
				b.WriteString(" " + labelStyle.Render(op.Description))
			}
			b.WriteString("\n")
			for _, arg := range op.Arguments {
				b.WriteString("      " + renderArgument(arg) + "\n")
			}
		}
	}
	return b.String()
}

func renderArgument(arg catalog.ArgumentDefinition) string {
	s := "--" + arg.Name + " " + dimStyle.Render("<"+string(arg.Type)+">")
	var notes []string
	if arg.Required {
		notes = append(notes, "required")
	}
	if len(arg.Choices) > 0 {
		notes = append(notes, strings.Join(arg.Choices, "|"))
	}
	if arg.Default != nil {
		notes = append(notes, fmt.Sprintf("default %v", arg.Default))
	}
	if len(notes) > 0 {
		s += " " + warnStyle.Render("["+strings.Join(notes, ", ")+"]")
	}
	if arg.Description != "" {
		s += " " + labelStyle.Render(arg.Description)
	}
	return s
}

// RenderSummary describes a finished run
func RenderSummary(e history.Entry) string {
	var mark string
	switch e.Status() {
	case "success":
		mark = goodStyle.Render("✔")
	case "cancelled":
		mark = warnStyle.Render("■")
	default:
		mark = badStyle.Render("✖")
	}

	var b strings.Builder
	b.WriteString(mark + " " + valueStyle.Render(e.Command+" "+e.Operation) + " " + labelStyle.Render(e.Status()) + "\n")
	b.WriteString("  " + labelStyle.Render("duration:") + " " + FormatDuration(e.Duration) + "\n")
	if !e.Cancelled && e.Error == "" {
		b.WriteString("  " + labelStyle.Render("exit code:") + " " + fmt.Sprint(e.ExitCode) + "\n")
	}
	if e.Error != "" {
		b.WriteString("  " + labelStyle.Render("error:") + " " + badStyle.Render(e.Error) + "\n")
	}
	if !e.Success && e.StderrTail != "" {
		b.WriteString(dimStyle.Render("  last stderr:") + "\n")
		for _, line := range strings.Split(strings.TrimRight(e.StderrTail, "\n"), "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	return b.String()
}

func statusStyle(s server.Status) lipgloss.Style {
	switch s {
	case server.StatusRunning:
		return goodStyle
	case server.StatusStarting, server.StatusStopping:
		return warnStyle
	case server.StatusError:
		return badStyle
	default:
		return dimStyle
	}
}

// RenderServers renders one row per instance; cursor < 0 highlights nothing
func RenderServers(list []server.Instance, cursor int) string {
	if len(list) == 0 {
		return dimStyle.Render("  no servers") + "\n"
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %-7s %-9s %-8s %-9s %s", "PORT", "STATUS", "PID", "UPTIME", "URL")) + "\n")
	for i, inst := range list {
		pointer := "  "
		if i == cursor {
			pointer = cursorStyle.Render("❯ ")
		}
		pid := "-"
		if inst.PID > 0 {
			pid = fmt.Sprint(inst.PID)
		}
		b.WriteString(fmt.Sprintf("%s%-7d %s %-8s %-9s %s",
			pointer,
			inst.Port,
			statusStyle(inst.Status).Render(fmt.Sprintf("%-9s", inst.Status)),
			pid,
			FormatDuration(inst.Uptime()),
			inst.URL(),
		))
		if inst.LastError != "" {
			b.WriteString(" " + badStyle.Render(inst.LastError))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDoctor renders a diagnosis as a checklist
func RenderDoctor(d doctor.Diagnosis) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("bbdev") + "\n")
	b.WriteString(toolLine(d.Bbdev))
	b.WriteString(fmt.Sprintf("  %s workspace %s\n", checkMark(len(d.Workspace) > 0 && !hasIssue(d.Issues, "workspace")), d.Workspace))

	if len(d.Tools) > 0 {
		b.WriteString("\n" + titleStyle.Render("Simulators") + "\n")
		for _, t := range d.Tools {
			b.WriteString(toolLine(t))
		}
	}

	if d.Port.Port > 0 {
		b.WriteString("\n" + titleStyle.Render("Agent port") + "\n")
		line := fmt.Sprintf("  %s %d", checkMark(d.Port.Available), d.Port.Port)
		if !d.Port.Available && d.Port.PID > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (held by pid %d)", d.Port.PID))
		}
		b.WriteString(line + "\n")
	}

	h := d.Host
	b.WriteString("\n" + titleStyle.Render("Host") + "\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("machine:"), thermal.FormatHardwareInfo(h.Hardware)))
	if h.MemoryTotal > 0 {
		b.WriteString(fmt.Sprintf("  %s %s / %s (%.0f%%)\n", labelStyle.Render("memory:"), FormatBytes(h.MemoryUsed), FormatBytes(h.MemoryTotal), h.MemPercent))
	}
	b.WriteString(fmt.Sprintf("  %s %.0f%%\n", labelStyle.Render("cpu load:"), h.CPUPercent))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("thermal:"), h.Thermal.Message))
	b.WriteString(fmt.Sprintf("  %s %d\n", labelStyle.Render("suggested jobs:"), h.Jobs))

	if len(d.Issues) > 0 {
		b.WriteString("\n")
		for _, issue := range d.Issues {
			b.WriteString(badStyle.Render("✖ ") + issue + "\n")
		}
	}
	for _, w := range d.Warnings {
		b.WriteString(warnStyle.Render("⚠ ") + w + "\n")
	}
	return b.String()
}

func toolLine(t doctor.ToolStatus) string {
	line := fmt.Sprintf("  %s %s", checkMark(t.Installed), t.Name)
	if t.Version != "" {
		line += " " + dimStyle.Render(t.Version)
	} else if !t.Installed && !t.Required {
		line += " " + dimStyle.Render("(optional)")
	}
	return line + "\n"
}

func checkMark(ok bool) string {
	if ok {
		return goodStyle.Render("✔")
	}
	return badStyle.Render("✖")
}

func hasIssue(issues []string, word string) bool {
	for _, i := range issues {
		if strings.Contains(i, word) {
			return true
		}
	}
	return false
}
