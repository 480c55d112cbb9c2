package errors

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// FormatForTerminal formats a Diagnostic for terminal output with ANSI colors
func (d Diagnostic) FormatForTerminal() string {
	var sb strings.Builder

	severityColor := getSeverityColor(d.Severity)
	sb.WriteString(fmt.Sprintf("%s%s[%s]%s: %s\n",
		colorBold+severityColor,
		severityTitle(d.Severity),
		d.Code,
		colorReset,
		d.Message))

	sb.WriteString(fmt.Sprintf("  %s-->%s %s:%d:%d\n",
		colorCyan,
		colorReset,
		d.Location.File,
		d.Location.Line,
		d.Location.Column))

	if d.Provenance.Metaclass != "" {
		sb.WriteString(fmt.Sprintf("  %s=%s generated by metaclass %s%s%s for target %s%s%s",
			colorGray,
			colorReset,
			colorBold, d.Provenance.Metaclass, colorReset,
			colorBold, d.Provenance.Target, colorReset))
		if d.Provenance.Member != "" {
			sb.WriteString(fmt.Sprintf(" (member %s)", d.Provenance.Member))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatDiagnosticsForTerminal formats a batch of diagnostics with a summary line
func FormatDiagnosticsForTerminal(diags []Diagnostic) string {
	var sb strings.Builder

	errorCount := 0
	warningCount := 0
	for _, d := range diags {
		sb.WriteString(d.FormatForTerminal())
		sb.WriteString("\n")
		if d.IsError() {
			errorCount++
		} else if d.IsWarning() {
			warningCount++
		}
	}

	if errorCount > 0 || warningCount > 0 {
		sb.WriteString(fmt.Sprintf("%s%d error(s), %d warning(s)%s\n",
			colorBold, errorCount, warningCount, colorReset))
	}

	return sb.String()
}

// getSeverityColor returns the ANSI color for a severity level
func getSeverityColor(s Severity) string {
	switch s {
	case Error, Fatal:
		return colorRed
	case Warning:
		return colorYellow
	default:
		return colorCyan
	}
}

// severityTitle returns the capitalized severity name
func severityTitle(s Severity) string {
	name := s.String()
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
