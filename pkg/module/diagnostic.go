package module

import "fmt"

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a non-fatal message produced while building a module.
type Diagnostic struct {
	Severity Severity
	Title    string
	Message  string
	// Module is empty until the build step tags the diagnostic.
	Module Identifier
	Loc    string
}

// Errorf creates an error-severity diagnostic.
func Errorf(title, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Title: title, Message: fmt.Sprintf(format, args...)}
}

// Warnf creates a warning diagnostic.
func Warnf(title, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Title: title, Message: fmt.Sprintf(format, args...)}
}

// WithModule returns a copy of d attributed to id.
func (d Diagnostic) WithModule(id Identifier) Diagnostic {
	d.Module = id
	return d
}

// IsError reports whether d has error severity.
func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

func (d Diagnostic) String() string {
	s := d.Severity.String()
	if d.Title != "" {
		s += " " + d.Title
	}
	if d.Module != "" {
		s += " in " + string(d.Module)
		if d.Loc != "" {
			s += ":" + d.Loc
		}
	}
	return s + ": " + d.Message
}

// Error lets an error-severity diagnostic be aggregated with other errors.
func (d Diagnostic) Error() string { return d.String() }
