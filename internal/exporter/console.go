package exporter

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"covidlag/internal/frame"
)

// Color modes accepted by NewConsoleReport.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// consoleRows caps the per-entity table printed to the terminal. The CSV and
// workbook carry every entity.
const consoleRows = 25

// ConsoleReport prints the run results as styled text.
type ConsoleReport struct {
	w      io.Writer
	styles consoleStyles
}

type consoleStyles struct {
	title   lipgloss.Style
	section lipgloss.Style
	muted   lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	border  lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
}

// NewConsoleReport creates a report writer for w. In auto mode colors are
// used only when w is a terminal.
func NewConsoleReport(w io.Writer, mode string) *ConsoleReport {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	default:
		if !isTerminal(w) {
			r.SetColorProfile(termenv.Ascii)
		}
	}

	teal := lipgloss.Color("#20B9B4")
	return &ConsoleReport{
		w: w,
		styles: consoleStyles{
			title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
			section: r.NewStyle().Bold(true).Foreground(teal),
			muted:   r.NewStyle().Foreground(lipgloss.Color("#6C8A94")),
			good:    r.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
			bad:     r.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
			border:  r.NewStyle().Foreground(lipgloss.Color("#16858E")),
			header:  r.NewStyle().Bold(true).Padding(0, 1),
			cell:    r.NewStyle().Padding(0, 1),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes model summaries, the RMSE ranking and the per-entity tables
// of the top models.
func (c *ConsoleReport) Print(res *Results) error {
	var b strings.Builder
	s := c.styles

	fmt.Fprintln(&b, s.title.Render("Lagged deaths regression"))
	fmt.Fprintln(&b, s.muted.Render(fmt.Sprintf("run %s  train rows %d  holdout rows %d",
		res.RunID, res.TrainRows, res.HoldoutRows)))
	fmt.Fprintln(&b)

	for _, m := range res.Models {
		c.writeModel(&b, m)
	}

	fmt.Fprintln(&b, s.section.Render("Holdout RMSE"))
	fmt.Fprintln(&b, c.table([]string{"rank", "model", "n", "global rmse"}, rankingRows(res), 2, 3))
	fmt.Fprintln(&b)

	for _, m := range res.Top() {
		fmt.Fprintln(&b, s.section.Render(fmt.Sprintf("Per-entity RMSE: %s", m.Spec.Name)))
		rows := make([][]string, 0, consoleRows)
		for i, e := range m.Evaluation.PerEntity {
			if i == consoleRows {
				break
			}
			rows = append(rows, []string{e.Entity, e.Location, formatFixed(e.Population, 0), formatInt(e.N), formatFixed(e.RMSE, 3)})
		}
		fmt.Fprintln(&b, c.table([]string{"entity", "location", "population", "n", "rmse"}, rows, 2, 3, 4))
		if extra := len(m.Evaluation.PerEntity) - consoleRows; extra > 0 {
			fmt.Fprintln(&b, s.muted.Render(fmt.Sprintf("... %d more entities in the CSV report", extra)))
		}
		fmt.Fprintln(&b)
	}

	if res.Snapshot != nil {
		fmt.Fprintln(&b, s.muted.Render(fmt.Sprintf("snapshot %s: %d rows",
			res.SnapshotDate.Format(frame.DateLayout), res.Snapshot.Len())))
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *ConsoleReport) writeModel(b *strings.Builder, m ModelResult) {
	s := c.styles
	if m.Model == nil {
		reason := ""
		if m.Failure != nil {
			reason = m.Failure.Reason
		}
		fmt.Fprintf(b, "%s %s\n", s.section.Render(m.Spec.Name), s.bad.Render("failed: "+reason))
		fmt.Fprintln(b)
		return
	}
	fm := m.Model
	fmt.Fprintf(b, "%s %s\n", s.section.Render(m.Spec.Name), s.muted.Render(m.Spec.Description))
	fmt.Fprintf(b, "  n=%d  excluded=%d  R²=%s  adj R²=%s  residual se=%s\n",
		fm.N, fm.Excluded,
		s.good.Render(formatFixed(fm.RSquared, 4)),
		formatFixed(fm.AdjRSquared, 4),
		formatFixed(fm.Residuals.StandardError, 3))

	rows := make([][]string, 0, len(fm.Coefficients))
	for _, coef := range fm.Coefficients {
		rows = append(rows, []string{
			coef.Name,
			formatSci(coef.Estimate),
			formatSci(coef.StdError),
			formatFixed(coef.TStat, 2),
			formatFixed(coef.PValue, 4),
		})
	}
	fmt.Fprintln(b, c.table([]string{"term", "estimate", "std error", "t", "p"}, rows, 1, 2, 3, 4))
	fmt.Fprintln(b)
}

func rankingRows(res *Results) [][]string {
	var ranked []ModelResult
	for _, m := range res.Models {
		if m.Rank > 0 {
			ranked = append(ranked, m)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })
	rows := make([][]string, 0, len(ranked))
	for _, m := range ranked {
		rows = append(rows, []string{formatInt(m.Rank), m.Spec.Name, formatInt(m.Evaluation.N), formatFixed(m.Evaluation.GlobalRMSE, 3)})
	}
	return rows
}

// table renders rows with the numeric columns right aligned.
func (c *ConsoleReport) table(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, i := range numeric {
		right[i] = true
	}
	s := c.styles
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			st := s.cell
			if row == table.HeaderRow {
				st = s.header
			}
			if right[col] {
				return st.Align(lipgloss.Right)
			}
			return st
		}).
		String()
}

func formatSci(f float64) string {
	if math.IsNaN(f) {
		return "NA"
	}
	return fmt.Sprintf("%.4g", f)
}
