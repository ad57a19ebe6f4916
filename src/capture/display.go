package capture

import (
	"fmt"

	"github.com/fatih/color"
)

var diagnosticColor = color.New(color.FgRed)

// FormatDiagnostic renders report as the one-line message written when
// display errors is enabled.
func FormatDiagnostic(report Report) string {
	if report.Uncaught {
		return fmt.Sprintf("Uncaught %s: %s in %s on line %d", report.Kind, report.Message, report.File, report.Line)
	}
	return fmt.Sprintf("Error [%v]: %s in %s on line %d", report.Code, report.Message, report.File, report.Line)
}

// display is best effort; a failed write never affects storage.
func (p *Pipeline) display(report Report) {
	if p.Display == nil {
		return
	}
	_, _ = diagnosticColor.Fprintln(p.Display, FormatDiagnostic(report))
}
