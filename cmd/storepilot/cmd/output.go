package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/planner"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output %q (want text, json or yaml)", format)
	}
}

// writeStructured renders v as JSON or YAML. YAML goes through JSON first so
// field names match the API.
func writeStructured(w io.Writer, v any, format string) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	if format == outputJSON {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}

func printReport(w io.Writer, r *model.CycleReport, format string) error {
	if format != outputText {
		return writeStructured(w, r, format)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Cycle "+r.CycleID) + "\n")
	field(&b, "job", r.JobID)
	field(&b, "created", r.CreatedAt.Format(time.RFC3339))
	field(&b, "mode", cycleMode(r))

	snap := r.Snapshot
	snapLine := fmt.Sprintf("%d items, %d orders, revenue %.2f", len(snap.ProductMetrics), snap.StoreMetrics.Orders, snap.StoreMetrics.Revenue)
	if snap.Degraded {
		snapLine += " " + warnStyle.Render("(degraded: "+snap.Error+")")
	}
	field(&b, "snapshot", snapLine)

	meta := r.ProposedPlan.PlannerMeta
	plannerLine := string(meta.Status)
	if meta.Provider != "" {
		plannerLine += " via " + meta.Provider
		if meta.Model != "" {
			plannerLine += "/" + meta.Model
		}
	}
	if meta.ErrorCode != "" {
		plannerLine += " " + warnStyle.Render("["+meta.ErrorCode+"]")
	}
	if meta.AIDisabled {
		plannerLine += " " + errStyle.Render("AI disabled")
	}
	field(&b, "planner", plannerLine)
	field(&b, "rationale", r.ProposedPlan.Rationale)

	decision := r.GovernorDecision
	b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("Governor: %d approved, %d rejected",
		len(decision.ApprovedActions), len(decision.RejectedActions))) + "\n")
	for _, a := range decision.ApprovedActions {
		fmt.Fprintf(&b, "  %s %s\n", okStyle.Render("+"), a.Type)
	}
	for _, rej := range decision.RejectedActions {
		fmt.Fprintf(&b, "  %s %s: %s\n", errStyle.Render("-"), rej.Action.Type, rej.Reason)
	}

	if len(r.ExecutionResults) > 0 {
		b.WriteString("\n" + titleStyle.Render("Execution") + "\n")
		for _, res := range r.ExecutionResults {
			line := fmt.Sprintf("  %s %s", statusBadge(string(res.Status)), res.Action.Type)
			switch {
			case res.Error != "":
				line += ": " + res.Error
			case res.Reason != "":
				line += ": " + res.Reason
			}
			b.WriteString(line + "\n")
		}
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func printReportList(w io.Writer, reports []model.CycleReport, format string) error {
	if format != outputText {
		summaries := make([]model.ReportSummary, 0, len(reports))
		for _, r := range reports {
			summaries = append(summaries, r.Summary())
		}
		return writeStructured(w, summaries, format)
	}

	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "no reports yet")
		return err
	}
	for _, r := range reports {
		s := r.Summary()
		if _, err := fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			r.CreatedAt.Format(time.RFC3339),
			s.CycleID,
			okStyle.Render(fmt.Sprintf("%d approved", s.Approved)),
			errStyle.Render(fmt.Sprintf("%d rejected", s.Rejected)),
			labelStyle.Render(cycleMode(&r)),
		); err != nil {
			return err
		}
	}
	return nil
}

func printHealth(w io.Writer, h planner.Health, format string) error {
	if format != outputText {
		return writeStructured(w, h, format)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Planner provider") + "\n")
	field(&b, "configured", fmt.Sprint(h.Configured))
	if h.Provider != "" {
		field(&b, "provider", h.Provider+"/"+h.Model)
	}
	if h.CanCall {
		field(&b, "status", okStyle.Render("reachable"))
	} else {
		field(&b, "status", errStyle.Render("unavailable"))
	}
	if h.ErrorCode != "" {
		field(&b, "error", fmt.Sprintf("[%s] %s", h.ErrorCode, h.Error))
	}
	if h.AIDisabled {
		field(&b, "ai", errStyle.Render("disabled until reset"))
	}
	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label+":")), value)
}

func cycleMode(r *model.CycleReport) string {
	switch {
	case r.DryRun:
		return "dry-run"
	case r.Apply:
		return "apply"
	default:
		return "plan-only"
	}
}

func statusBadge(status string) string {
	switch status {
	case string(model.ExecutionSuccess), string(model.JobStatusDone):
		return okStyle.Render("✓ " + status)
	case string(model.ExecutionError):
		return errStyle.Render("✗ " + status)
	case string(model.ExecutionSkipped), string(model.JobStatusQueued), string(model.JobStatusRunning):
		return warnStyle.Render("• " + status)
	default:
		return status
	}
}
