package c5

import (
	"fmt"
	"sort"
	"strings"
)

// Severity discriminates whether a Diagnostic blocks codegen or is
// purely cosmetic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is the single shape every stage of the pipeline reports
// through: a stable three-digit code (E0xx/W0xx, see spec.md §6), a
// severity, a span, and a one-line human message. Production is set
// for parse-time diagnostics, naming the grammar production that was
// active when the error fired; it is empty for semantic diagnostics.
type Diagnostic struct {
	Code       string
	Severity   Severity
	Message    string
	Span       Span
	Production string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: [%s] %s @ %s", d.Severity, d.Code, d.Message, d.Span)
}

// Diagnostics batches every Diagnostic raised while compiling one
// unit. The analyser keeps accumulating into it across distinct
// top-level declarations (see spec.md §4.4); codegen only runs once
// HasErrors is false.
type Diagnostics struct {
	items []Diagnostic
}

func (d *Diagnostics) Add(diag Diagnostic) { d.items = append(d.items, diag) }

func (d *Diagnostics) Errorf(code string, span Span, format string, args ...any) {
	d.Add(Diagnostic{Code: code, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Span: span})
}

func (d *Diagnostics) Warnf(code string, span Span, format string, args ...any) {
	d.Add(Diagnostic{Code: code, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Span: span})
}

// All returns every diagnostic in source order.
func (d *Diagnostics) All() []Diagnostic {
	sorted := make([]Diagnostic, len(d.items))
	copy(sorted, d.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Span.Start, sorted[j].Span.Start
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Cursor < b.Cursor
	})
	return sorted
}

func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d *Diagnostics) ErrorCount() int {
	n := 0
	for _, it := range d.items {
		if it.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (d *Diagnostics) WarningCount() int {
	n := 0
	for _, it := range d.items {
		if it.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// FormatCLI renders one diagnostic the way a terminal report would
// show it. The full terminal formatting pipeline (colors, carets into
// the source line) is out of scope for the core (spec.md §1); this is
// the minimal single-line form the driver falls back to.
func (d Diagnostic) FormatCLI() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Span, d.Severity, d.Message, d.Code)
}

// Error lets *Diagnostics be returned directly as an error from a
// pipeline stage; it never catches a programming invariant failure,
// only the accumulated user-facing diagnostics (spec.md §7).
func (d *Diagnostics) Error() string {
	if len(d.items) == 0 {
		return "no diagnostics"
	}
	all := d.All()
	if len(all) == 1 {
		return all[0].FormatCLI()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d diagnostics:\n", len(all))
	for _, diag := range all {
		b.WriteString("  ")
		b.WriteString(diag.FormatCLI())
		b.WriteRune('\n')
	}
	return b.String()
}

// Well-known error/warning codes. These are the contractually stable
// identifiers named in spec.md §6; implementers must preserve them.
const (
	ErrLex              = "E001"
	ErrParse            = "E002"
	ErrIncludeNotFound  = "E010"
	ErrLiteralOutOfWidth = "E023"
	ErrSignatureMismatch = "E030"
	ErrDuplicateDef      = "E041"
	ErrConstViolation    = "E042"
	WarnFloatNarrowing   = "W006"
)

// backtrackingError is an internal error raised by a single recursive
// descent production as it tries an alternative; the parser's
// one-token lookahead recovery catches and discards it before
// promoting whatever survives to a Diagnostic. It deliberately does
// not implement Diagnostic's Span formatting, since it is never shown
// to the user directly.
type backtrackingError struct {
	Production string
	Expected   string
	Message    string
	Span       Span
}

func (e *backtrackingError) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Span)
}
