// Package report renders run results to files: a JSON document for
// machines and a Markdown table for humans. The exit-code mapping for
// the CLI lives here too, next to the result semantics it encodes.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/outcome"
	"github.com/jowharshamshiri/Janus/stress"
)

// Report is the complete record of one harness run.
type Report struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	Mode            string                `json:"mode"`
	Implementations []string              `json:"implementations"`
	Summary         outcome.Summary       `json:"summary"`
	Outcomes        []outcome.Outcome     `json:"results,omitempty"`
	Stress          []*stress.Statistics  `json:"stress,omitempty"`
}

// New assembles a report for the given run mode.
func New(mode string, implementations []string, collector *outcome.Collector, stressRuns []*stress.Statistics) *Report {
	return &Report{
		GeneratedAt:     time.Now(),
		Mode:            mode,
		Implementations: implementations,
		Summary:         collector.Summarize(),
		Outcomes:        collector.All(),
		Stress:          stressRuns,
	}
}

// Success reports run-level success: the outcome summary is clean and
// every stress run passed.
func (r *Report) Success() bool {
	if !r.Summary.Success() {
		return false
	}
	for _, s := range r.Stress {
		if s.Verdict != stress.VerdictPass {
			return false
		}
	}
	return true
}

// ExitCode maps run-level success onto the process exit status.
func (r *Report) ExitCode() int {
	if r.Success() {
		return 0
	}
	return 1
}

// WriteJSON writes the report as indented JSON, creating parent
// directories as needed.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Report", "WriteJSON", "marshal")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "Report", "WriteJSON", "create directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "Report", "WriteJSON", "write file")
	}
	return nil
}

// WriteMarkdown writes the human-readable report.
func (r *Report) WriteMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "Report", "WriteMarkdown", "create directory")
	}
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return errors.Wrap(err, "Report", "WriteMarkdown", "write file")
	}
	return nil
}

// Markdown renders the report body.
func (r *Report) Markdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Janus %s run\n\n", r.Mode)
	fmt.Fprintf(&sb, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Implementations: %s\n\n", strings.Join(r.Implementations, ", "))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Errors | Timeouts | Skipped | Success rate |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %d | %d | %.1f%% |\n\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Failed,
		r.Summary.Errors, r.Summary.Timeouts, r.Summary.Skipped,
		r.Summary.SuccessRate)

	if len(r.Outcomes) > 0 {
		sb.WriteString("## Results\n\n")
		sb.WriteString("| Test | Status | Duration | Message |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, o := range r.Outcomes {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				o.Name, o.Status, o.Duration.Round(time.Millisecond),
				sanitizeCell(o.Message))
		}
		sb.WriteString("\n")
	}

	if len(r.Stress) > 0 {
		sb.WriteString("## Stress\n\n")
		sb.WriteString("| Server | Verdict | Requests | Success rate | Request rate |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, s := range r.Stress {
			fmt.Fprintf(&sb, "| %s | %s | %d | %.1f%% | %.1f/s |\n",
				s.Server, s.Verdict, s.Total, s.SuccessRate(), s.RequestRate())
		}
		sb.WriteString("\n")
	}

	if r.Success() {
		sb.WriteString("**Result: PASS**\n")
	} else {
		sb.WriteString("**Result: FAIL**\n")
	}
	return sb.String()
}

// sanitizeCell keeps table cells on one line.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
