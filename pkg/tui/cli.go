// Package tui renders simulation results for the terminal and runs the
// interactive scenario builder.
package tui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/edits"
	"github.com/o2csim/o2csim/pkg/explain"
	"github.com/o2csim/o2csim/pkg/vocab"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Width(14).Align(lipgloss.Right)
	labelStyle   = lipgloss.NewStyle().Width(26)
)

const rule = "  ─────────────────────────────────────────────────────────────────"

// Version is shown in the header.
var Version = "0.1.0"

// PrintHeader prints the banner.
func PrintHeader(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  O2CSIM")+mutedStyle.Render(" v"+Version))
	fmt.Fprintln(w, mutedStyle.Render("  Order-to-cash process KPI simulator"))
	fmt.Fprintln(w)
}

func directionStyle(d explain.Direction) lipgloss.Style {
	switch d {
	case explain.Improved:
		return successStyle
	case explain.Worsened:
		return accentStyle
	default:
		return mutedStyle
	}
}

// PrintResult prints the KPI table, confidence and summary of one result.
func PrintResult(w io.Writer, res *model.SimulationResult) {
	fmt.Fprintln(w)
	switch {
	case res.ComputationError:
		fmt.Fprintln(w, accentStyle.Render("  ✗ PREDICTION FAILED, BASELINE SHOWN"))
	case res.IsBaseline:
		fmt.Fprintln(w, successStyle.Render("  ✓ BASELINE PROCESS"))
	default:
		fmt.Fprintln(w, titleStyle.Render("  ▸ SIMULATION RESULT"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s%s%s%s\n",
		labelStyle.Render(mutedStyle.Render("KPI")),
		cellStyle.Render(mutedStyle.Render("Baseline")),
		cellStyle.Render(mutedStyle.Render("Predicted")),
		cellStyle.Render(mutedStyle.Render("Change")))
	fmt.Fprintln(w, mutedStyle.Render(rule))

	for _, f := range explain.Factors(res.Baseline(), res.Predicted()) {
		change := fmt.Sprintf("%+.2f", f.Delta)
		fmt.Fprintf(w, "  %s%s%s%s\n",
			labelStyle.Render(f.KPI.Label()),
			cellStyle.Render(explain.Format(f.KPI, f.Before)),
			cellStyle.Render(titleStyle.Render(explain.Format(f.KPI, f.After))),
			cellStyle.Render(directionStyle(f.Direction).Render(change)))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))

	conf := fmt.Sprintf("%.0f%%", res.Confidence*100)
	fmt.Fprintf(w, "  %s %s", mutedStyle.Render("Confidence:"), titleStyle.Render(conf))
	if res.ModelVersion != "" {
		fmt.Fprintf(w, "  %s %s", mutedStyle.Render("Model:"), res.ModelVersion)
	}
	if res.Degraded {
		fmt.Fprintf(w, "  %s", accentStyle.Render("(degraded)"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+res.Summary)
	fmt.Fprintln(w)
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Total      int
	Succeeded  int
	Failed     int
	Baseline   int
	Degraded   bool
	OutputPath string
	Duration   time.Duration
}

// PrintBatchReport prints results after a batch run.
func PrintBatchReport(w io.Writer, report *BatchReport) {
	fmt.Fprintln(w)
	if report.Failed == 0 {
		fmt.Fprintln(w, successStyle.Render("  ✓ BATCH COMPLETE"))
	} else {
		fmt.Fprintln(w, accentStyle.Render(fmt.Sprintf("  ✓ BATCH COMPLETE WITH %d FAILURE(S)", report.Failed)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Scenarios:"), titleStyle.Render(formatNumber(int64(report.Total))))
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d\n",
		mutedStyle.Render("Succeeded:"), report.Succeeded,
		mutedStyle.Render("Failed:"), report.Failed,
		mutedStyle.Render("Baseline:"), report.Baseline)
	if report.Duration > 0 {
		rate := float64(report.Total) / report.Duration.Seconds()
		fmt.Fprintf(w, "  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(report.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s scenarios/sec)", formatNumber(int64(rate)))))
	}
	if report.OutputPath != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(report.OutputPath))
	}
	if report.Degraded {
		fmt.Fprintln(w, accentStyle.Render("  Model unavailable: figures are rule-based estimates."))
	}
	fmt.Fprintln(w)
}

// PrintActivities prints a numbered activity list.
func PrintActivities(w io.Writer, activities []string) {
	for i, a := range activities {
		name := a
		if !vocab.Contains(a) {
			name = a + " " + mutedStyle.Render("(unknown)")
		}
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%2d.", i+1)), name)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar for batch runs.
func ShowProgress(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// WizardResult is the scenario built interactively.
type WizardResult struct {
	Graph model.ProcessGraph
	Edits []edits.Edit
}

// RunWizard starts from the baseline and applies edits typed by the user
// until "run". It returns nil when the user quits.
//
// Commands:
//
//	add <activity> [after|before <activity>]
//	remove <activity>
//	rename <from> to <to>
//	time <activity> <hours>
//	cost <activity> <amount>
//	list | undo | run | quit
func RunWizard(in io.Reader, out io.Writer) (*WizardResult, error) {
	reader := bufio.NewReader(in)
	base := model.ProcessGraph{Activities: vocab.BaselineActivities()}
	var applied []edits.Edit

	PrintHeader(out)
	fmt.Fprintln(out, accentStyle.Render("▸ BASELINE PROCESS"))
	PrintActivities(out, base.Activities)
	fmt.Fprintln(out)
	fmt.Fprintln(out, mutedStyle.Render("  add <activity> [after|before <activity>], remove, rename <a> to <b>,"))
	fmt.Fprintln(out, mutedStyle.Render("  time <activity> <hours>, cost <activity> <amount>, list, undo, run, quit"))

	current := base
	for {
		fmt.Fprint(out, "\n  edit> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}

		cmd, _, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(out, mutedStyle.Render("  Cancelled."))
			return nil, nil
		case "run":
			return &WizardResult{Graph: current, Edits: applied}, nil
		case "list":
			PrintActivities(out, current.Activities)
			continue
		case "undo":
			if len(applied) > 0 {
				applied = applied[:len(applied)-1]
				current, _ = edits.Apply(base, applied...)
			}
			PrintActivities(out, current.Activities)
			continue
		}

		e, perr := ParseCommand(line)
		if perr != nil {
			fmt.Fprintln(out, accentStyle.Render("  ✗ "+perr.Error()))
			continue
		}
		next, aerr := edits.Apply(current, e)
		if aerr != nil {
			fmt.Fprintln(out, accentStyle.Render("  ✗ "+aerr.Error()))
			continue
		}
		applied = append(applied, e)
		current = next
		fmt.Fprintln(out, successStyle.Render("  ✓ ")+edits.Describe(e))
	}
}

// ParseCommand parses one wizard edit command.
func ParseCommand(line string) (edits.Edit, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, fmt.Errorf("%s needs an activity", cmd)
	}

	switch strings.ToLower(cmd) {
	case "add":
		if name, after, ok := cutWord(arg, "after"); ok {
			return edits.AddStep{Activity: name, After: after}, nil
		}
		if name, before, ok := cutWord(arg, "before"); ok {
			return edits.AddStep{Activity: name, Before: before}, nil
		}
		return edits.AddStep{Activity: arg}, nil
	case "remove":
		return edits.RemoveStep{Activity: arg}, nil
	case "rename":
		from, to, ok := cutWord(arg, "to")
		if !ok {
			return nil, fmt.Errorf("usage: rename <from> to <to>")
		}
		return edits.RenameActivity{From: from, To: to}, nil
	case "time", "cost":
		i := strings.LastIndex(arg, " ")
		if i < 0 {
			return nil, fmt.Errorf("usage: %s <activity> <value>", cmd)
		}
		v, err := strconv.ParseFloat(arg[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", arg[i+1:])
		}
		e := edits.ModifyKPI{Activity: strings.TrimSpace(arg[:i])}
		if strings.EqualFold(cmd, "time") {
			e.AvgTimeHours = &v
		} else {
			e.Cost = &v
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

// cutWord splits s around the first standalone, case-insensitive word.
func cutWord(s, word string) (before, after string, ok bool) {
	lower := strings.ToLower(s)
	sep := " " + word + " "
	if i := strings.Index(lower, sep); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):]), true
	}
	return s, "", false
}
