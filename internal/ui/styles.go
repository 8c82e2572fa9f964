package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	subtle  = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}
	muted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	good    = lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warn    = lipgloss.AdaptiveColor{Light: "#CC6600", Dark: "#FFAA00"}
	bad     = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	info    = lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"}
	strong  = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}
	divider = lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle    = lipgloss.NewStyle().Foreground(subtle)
	labelStyle  = lipgloss.NewStyle().Foreground(muted)
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(strong)
	goodStyle   = lipgloss.NewStyle().Foreground(good)
	warnStyle   = lipgloss.NewStyle().Foreground(warn)
	badStyle    = lipgloss.NewStyle().Foreground(bad)
	infoStyle   = lipgloss.NewStyle().Foreground(info)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	pickedStyle = lipgloss.NewStyle().Bold(true).Foreground(good)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

// Printer writes styled status lines
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Std prints to stdout
var Std = NewPrinter(os.Stdout)

func (p *Printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) Header(text string) {
	p.line(titleStyle.MarginBottom(1).Render("  " + text))
}

func (p *Printer) Success(text string) {
	p.line(goodStyle.Render("✔") + " " + text)
}

func (p *Printer) Warn(text string) {
	p.line(warnStyle.Render("⚠") + " " + text)
}

func (p *Printer) Error(text string) {
	p.line(badStyle.Render("✖") + " " + text)
}

func (p *Printer) Info(text string) {
	p.line(infoStyle.Render("ℹ") + " " + text)
}

// Field prints an indented "label: value" pair
func (p *Printer) Field(label, value string) {
	p.line("  " + labelStyle.Render(label+":") + " " + valueStyle.Render(value))
}

func (p *Printer) Divider() {
	p.line(lipgloss.NewStyle().Foreground(divider).Render("  " + strings.Repeat("─", 50)))
}

// Box prints content inside a rounded border
func (p *Printer) Box(title, content string) {
	if title != "" {
		p.line(titleStyle.Render("  " + title))
	}
	p.line(boxStyle.Render(content))
}

// Raw prints s unstyled
func (p *Printer) Raw(s string) {
	p.line(s)
}
