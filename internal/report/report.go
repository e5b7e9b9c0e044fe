// Package report renders the end-of-run summary box.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"autoedit/internal/timeutil"
	"autoedit/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Summary is the job state shown to the user after a run.
type Summary struct {
	Output       string
	Sources      int
	Probed       int
	Clips        int
	ClipsDone    int
	TotalSeconds float64
	TargetSecs   float64
	Resumed      bool
	Failures     []string
}

// FromManifest collects a Summary from the job state.
func FromManifest(m *models.Manifest, output string, resumed bool) Summary {
	s := Summary{
		Output:     output,
		Sources:    len(m.Sources),
		Probed:     len(m.SourcesByStatus(models.SourceProbed)),
		Clips:      len(m.Clips),
		TargetSecs: m.Plan.TargetSeconds,
		Resumed:    resumed,
	}
	for _, src := range m.SourcesByStatus(models.SourceFailed) {
		s.Failures = append(s.Failures, fmt.Sprintf("source %s: %s", src.Path, src.Error))
	}
	for _, c := range m.OrderedClips() {
		switch c.Status {
		case models.ClipDone:
			s.ClipsDone++
			s.TotalSeconds += c.LengthSeconds
		case models.ClipFailed:
			s.Failures = append(s.Failures, fmt.Sprintf("clip %03d: %s", c.SequenceIndex, c.Error))
		}
	}
	if m.Final != nil && m.Final.Status == models.FinalFailed {
		s.Failures = append(s.Failures, "final: "+m.Final.Error)
	}
	return s
}

// Render returns the summary as a bordered panel.
func Render(s Summary) string {
	var title string
	switch {
	case s.Output != "" && s.Resumed:
		title = okStyle.Render("auto-edit already complete")
	case s.Output != "":
		title = okStyle.Render("auto-edit complete")
	default:
		title = errorStyle.Render("auto-edit incomplete")
	}

	lines := []string{title, ""}
	if s.Output != "" {
		lines = append(lines, titleStyle.Render(filepath.Base(s.Output)))
	}
	lines = append(lines,
		row("sources", fmt.Sprintf("%d probed of %d", s.Probed, s.Sources)),
		row("clips", fmt.Sprintf("%d done of %d", s.ClipsDone, s.Clips)),
		row("duration", fmt.Sprintf("%s (target %s)", timeutil.FormatSeconds(s.TotalSeconds), timeutil.FormatSeconds(s.TargetSecs))),
	)
	if len(s.Failures) > 0 {
		lines = append(lines, "", errorStyle.Render(fmt.Sprintf("%d failure(s)", len(s.Failures))))
		for _, f := range s.Failures {
			lines = append(lines, "  "+f)
		}
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Write renders s to w followed by a newline.
func Write(w io.Writer, s Summary) error {
	_, err := io.WriteString(w, Render(s)+"\n")
	return err
}

func row(label, value string) string {
	return mutedStyle.Render(fmt.Sprintf("%-9s", label)) + " " + value
}

// RenderPlan lists the job's clips in sequence order, one per line, followed
// by the planned total.
func RenderPlan(m *models.Manifest) string {
	var b strings.Builder
	total := 0.0
	for _, c := range m.OrderedClips() {
		fmt.Fprintf(&b, "#%03d  %-8s  %s  +%6.2fs  %s\n",
			c.SequenceIndex, c.Status, timeutil.FormatSeconds(c.StartSeconds), c.LengthSeconds, c.SourcePath)
		if c.CountsTowardTarget() {
			total += c.LengthSeconds
		}
	}
	fmt.Fprintf(&b, "%d clip(s), %s of %s\n", len(m.Clips), timeutil.FormatSeconds(total), timeutil.FormatSeconds(m.Plan.TargetSeconds))
	return b.String()
}
