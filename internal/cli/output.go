package cli

import (
	"fmt"
	"io"
	"strings"

	"review-hub-backend/db/models"
	"review-hub-backend/internal/importclient"
	"review-hub-backend/internal/reviewcsv"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the color scheme for command output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var theme = Theme{
	Status:  lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Warning: lipgloss.Color("#FFAF00"),
	Error:   lipgloss.Color("#FF005F"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Width(10)
}

func row(label string, value any) string {
	return theme.labelStyle().Render(label) + fmt.Sprint(value)
}

func renderMapping(w io.Writer, mapping reviewcsv.ColumnMapping) {
	fmt.Fprintln(w, theme.statusStyle().Render("Column mapping"))
	for _, f := range reviewcsv.Fields {
		h, ok := mapping[f]
		switch {
		case ok:
			fmt.Fprintf(w, "  %-20s <- %s\n", f, h)
		case f.IsRequired():
			fmt.Fprintf(w, "  %-20s %s\n", f, theme.errorStyle().Render("not mapped"))
		default:
			fmt.Fprintf(w, "  %-20s %s\n", f, theme.hintStyle().Render("ignored"))
		}
	}
}

func renderSummary(w io.Writer, s reviewcsv.Summary, policy reviewcsv.Policy) {
	fmt.Fprintln(w, theme.statusStyle().Render("Validation"))
	fmt.Fprintln(w, "  "+row("rows", s.TotalRows))
	fmt.Fprintln(w, "  "+row("accepted", theme.successStyle().Render(fmt.Sprint(s.AcceptedRows))))
	rejected := fmt.Sprint(s.RejectedRows)
	if s.RejectedRows > 0 {
		rejected = theme.errorStyle().Render(rejected)
	}
	fmt.Fprintln(w, "  "+row("rejected", rejected))
	if s.Warnings > 0 {
		fmt.Fprintln(w, "  "+row("warnings", theme.warningStyle().Render(fmt.Sprint(s.Warnings))))
	}
	for _, issue := range s.FirstIssues {
		style := theme.errorStyle()
		if issue.Severity == reviewcsv.SeverityWarning {
			style = theme.warningStyle()
		}
		fmt.Fprintln(w, "  "+style.Render(issue.String()))
	}
	if hidden := s.Errors + s.Warnings - len(s.FirstIssues); hidden > 0 {
		fmt.Fprintln(w, "  "+theme.hintStyle().Render(fmt.Sprintf("... and %d more", hidden)))
	}

	if reason := policy.Reason(s); reason != "" {
		fmt.Fprintln(w, theme.errorStyle().Render("Blocked: ")+reason)
	} else {
		fmt.Fprintln(w, theme.successStyle().Render("Ready to import"))
	}
}

func renderResults(w io.Writer, r *importclient.Results) {
	style := theme.successStyle()
	switch r.JobStatus {
	case models.ImportJobCompletedWithErrors:
		style = theme.warningStyle()
	case models.ImportJobFailed, models.ImportJobCancelled:
		style = theme.errorStyle()
	}
	fmt.Fprintln(w, style.Render("Import "+strings.ReplaceAll(string(r.JobStatus), "_", " ")))
	fmt.Fprintln(w, "  "+row("inserted", r.Inserted))
	fmt.Fprintln(w, "  "+row("updated", r.Updated))
	fmt.Fprintln(w, "  "+row("skipped", r.Skipped))
	fmt.Fprintln(w, "  "+row("errors", r.Errors))
	for _, m := range r.Messages {
		fmt.Fprintln(w, "  "+theme.hintStyle().Render(m))
	}
}

// progressPrinter prints stage changes and every 10% step of progress.
type progressPrinter struct {
	w         io.Writer
	stage     importclient.Stage
	lastShown int
}

func (p *progressPrinter) update(s importclient.State) {
	if s.Stage != p.stage {
		p.stage = s.Stage
		fmt.Fprintln(p.w, theme.statusStyle().Render("> "+string(s.Stage)))
	}
	step := int(s.Progress) / 10 * 10
	if step > p.lastShown {
		p.lastShown = step
		fmt.Fprintln(p.w, theme.hintStyle().Render(fmt.Sprintf("  %3d%%", step)))
	}
}
