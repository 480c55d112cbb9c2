package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ProgressBar tracks build progress over a known number of source files
type ProgressBar struct {
	writer  io.Writer
	total   int
	current int
	width   int
	message string
	noColor bool
}

// ProgressBarOptions configures progress bar behavior
type ProgressBarOptions struct {
	Total   int
	Width   int // bar width in cells, default 30
	Message string
	NoColor bool
}

// NewProgressBar creates a progress bar expecting opts.Total steps
func NewProgressBar(w io.Writer, opts ProgressBarOptions) *ProgressBar {
	width := opts.Width
	if width == 0 {
		width = 30
	}
	return &ProgressBar{
		writer:  w,
		total:   opts.Total,
		width:   width,
		message: opts.Message,
		noColor: opts.NoColor,
	}
}

// Add advances the bar by n steps and redraws it
func (p *ProgressBar) Add(n int) {
	p.current += n
	if p.current > p.total {
		p.current = p.total
	}
	p.render()
}

// Finish fills the bar and ends the line
func (p *ProgressBar) Finish() {
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *ProgressBar) render() {
	if p.total == 0 {
		return
	}
	filled := p.width * p.current / p.total

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if p.noColor {
		cyan.DisableColor()
		gray.DisableColor()
	}

	var bar strings.Builder
	bar.WriteString("[")
	cyan.Fprint(&bar, strings.Repeat("█", filled))
	gray.Fprint(&bar, strings.Repeat("░", p.width-filled))
	bar.WriteString("]")

	line := fmt.Sprintf("\r%s %d/%d", bar.String(), p.current, p.total)
	if p.message != "" {
		line += " " + p.message
	}
	fmt.Fprint(p.writer, line)
}
