// Package report renders manifests, plans and apply results for terminals.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/asynkron/versionpatcher/pkg/patch"
)

// Printer writes styled reports to an output stream.
type Printer struct {
	w io.Writer

	title   lipgloss.Style
	section lipgloss.Style
	muted   lipgloss.Style
	status  map[string]lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter returns a Printer for w. When color is false all styling is
// dropped regardless of what the terminal supports.
func NewPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w:       w,
		title:   r.NewStyle().Bold(true),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:   r.NewStyle().Faint(true),
		status: map[string]lipgloss.Style{
			patch.StatusCopied:  r.NewStyle().Faint(true),
			patch.StatusPatched: r.NewStyle().Foreground(lipgloss.Color("11")),
			patch.StatusAdded:   r.NewStyle().Foreground(lipgloss.Color("10")),
			patch.StatusDeleted: r.NewStyle().Foreground(lipgloss.Color("9")),
		},
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Manifest lists every record in m. size is the container size in bytes.
func (p *Printer) Manifest(location string, size int64, m *patch.Manifest) {
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf("%s (format v%d, %s)", location, m.Version, humanize.Bytes(uint64(max(size, 0))))))

	records := func(name string, recs []patch.Record) {
		var total int64
		for _, r := range recs {
			total += int64(r.Length)
		}
		fmt.Fprintln(p.w, p.section.Render(fmt.Sprintf("%s: %d (%s)", name, len(recs), humanize.Bytes(uint64(total)))))
		for _, r := range recs {
			fmt.Fprintf(p.w, "  %s %s\n", r.Path, p.muted.Render(humanize.Bytes(uint64(r.Length))))
		}
	}
	records("patches", m.Patches)
	records("additions", m.Additions)

	fmt.Fprintln(p.w, p.section.Render(fmt.Sprintf("deletions: %d", len(m.Deletions))))
	for _, d := range m.Deletions {
		fmt.Fprintf(p.w, "  %s\n", d)
	}
}

// Results prints one line per result followed by a summary. Copies are only
// counted unless verbose is set, since a baseline copy can touch thousands of
// files.
func (p *Printer) Results(results []patch.Result, dryRun, verbose bool) {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
		if r.Status == patch.StatusCopied && !verbose {
			continue
		}
		fmt.Fprintf(p.w, "%s %s\n", p.statusStyle(r.Status).Render(r.Status), r.Path)
	}

	verb := "applied"
	if dryRun {
		verb = "planned"
	}
	fmt.Fprintln(p.w, p.title.Render(Summary(counts, verb)))
}

// Summary formats per-status counts as a single line.
func Summary(counts map[string]int, verb string) string {
	parts := []string{
		fmt.Sprintf("%d patched", counts[patch.StatusPatched]),
		fmt.Sprintf("%d added", counts[patch.StatusAdded]),
		fmt.Sprintf("%d deleted", counts[patch.StatusDeleted]),
	}
	if n := counts[patch.StatusCopied]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d copied unchanged", n))
	}
	return fmt.Sprintf("Update %s: %s", verb, strings.Join(parts, ", "))
}

// Error prints a user-facing description of err.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.w, p.failure.Render("error"))
	fmt.Fprintln(p.w, patch.Describe(err))
}

func (p *Printer) statusStyle(status string) lipgloss.Style {
	if s, ok := p.status[status]; ok {
		return s
	}
	return p.muted
}
