// Package errors defines the structured diagnostics produced by every phase
// of the metaforge toolchain. A Diagnostic carries the error code, severity,
// source location, and — for synthesized code — the provenance linking it back
// to the metaclass and application site that produced it.
package errors

import (
	"encoding/json"
	"fmt"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Provenance links a diagnostic raised during synthesis back to the generator
// that was executing, the site where it was applied, and the declaration it
// was generating for. Member is set when the diagnostic concerns a specific
// member of the target.
type Provenance struct {
	Metaclass       string         `json:"metaclass,omitempty"`
	ApplicationSite SourceLocation `json:"application_site,omitempty"`
	Target          string         `json:"target,omitempty"`
	Member          string         `json:"member,omitempty"`
	GenerationStep  int            `json:"generation_step,omitempty"`
}

// Diagnostic represents a structured toolchain diagnostic
type Diagnostic struct {
	Phase      string         // "lexer", "parser", "model", "composer", "synthesis", "backend"
	Code       string         // "E001", "E201", etc.
	Message    string         // Human-readable message
	Location   SourceLocation // File, line, column of the source declaration
	Severity   Severity
	Provenance Provenance // Zero value for front-end diagnostics
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	if d.Provenance.Metaclass != "" {
		return fmt.Sprintf("%s:%d:%d: %s: %s (metaclass %s, target %s)",
			d.Location.File,
			d.Location.Line,
			d.Location.Column,
			d.Code,
			d.Message,
			d.Provenance.Metaclass,
			d.Provenance.Target)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		d.Location.File,
		d.Location.Line,
		d.Location.Column,
		d.Code,
		d.Message)
}

// New creates a new Diagnostic
func New(phase, code, message string, location SourceLocation, severity Severity) Diagnostic {
	return Diagnostic{
		Phase:    phase,
		Code:     code,
		Message:  message,
		Location: location,
		Severity: severity,
	}
}

// WithProvenance attaches generator provenance to the diagnostic
func (d Diagnostic) WithProvenance(p Provenance) Diagnostic {
	d.Provenance = p
	return d
}

// WithMember marks the diagnostic as concerning a specific member
func (d Diagnostic) WithMember(member string) Diagnostic {
	d.Provenance.Member = member
	return d
}

// MarshalJSON implements json.Marshaler
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Phase      string         `json:"phase"`
		Code       string         `json:"code"`
		Message    string         `json:"message"`
		Severity   Severity       `json:"severity"`
		Location   SourceLocation `json:"location"`
		Provenance Provenance     `json:"provenance"`
	}{
		Phase:      d.Phase,
		Code:       d.Code,
		Message:    d.Message,
		Severity:   d.Severity,
		Location:   d.Location,
		Provenance: d.Provenance,
	})
}

// IsError returns true if the diagnostic is at Error or Fatal severity
func (d Diagnostic) IsError() bool {
	return d.Severity == Error || d.Severity == Fatal
}

// IsWarning returns true if the diagnostic is at Warning severity
func (d Diagnostic) IsWarning() bool {
	return d.Severity == Warning
}

// IsFatal returns true if the diagnostic is at Fatal severity
func (d Diagnostic) IsFatal() bool {
	return d.Severity == Fatal
}
