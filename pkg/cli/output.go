package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"mercator-hq/lethe/pkg/retention"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is a human readable summary (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV for tabular outputs.
	FormatCSV OutputFormat = "csv"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", NewConfigError("format", fmt.Sprintf("unsupported output format %q (valid: text, json, csv)", s))
	}
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats tables as CSV.
type CSVFormatter struct{}

// FormatTo writes a Table as CSV. Other values are rejected.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Table)
	if !ok {
		return fmt.Errorf("csv output is not supported for %T", data)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows()); err != nil {
		return err
	}
	return cw.Error()
}

// TextFormatter renders human readable summaries.
type TextFormatter struct{}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case retention.ScheduledJobResult:
		return writeJobResult(w, v)
	case *retention.ScheduledJobResult:
		return writeJobResult(w, *v)
	case StatusReport:
		return writeStatus(w, v)
	case Table:
		return writeTable(w, v)
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

func writeTable(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header(), "\t"))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeJobResult(w io.Writer, r retention.ScheduledJobResult) error {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Job %s%s\n", r.Kind, mode)
	fmt.Fprintf(w, "ID: %s\n", r.JobID)
	fmt.Fprintf(w, "Started: %s  Duration: %s\n",
		r.StartedAt.UTC().Format(time.RFC3339), r.Duration().Round(time.Millisecond))
	fmt.Fprintln(w)

	if len(r.Categories) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CATEGORY\tSTATE\tSCANNED\tPROCESSED\tOK\tFAILED\tANON\tSOFT\tHARD\tSKIPPED\tNOTIFIED")
		for _, c := range r.Categories {
			b := c.Batch
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				c.Category, c.State, c.Scanned, b.TotalProcessed, b.Successful, b.Failed,
				b.Anonymized, b.SoftDeleted, b.HardDeleted, b.Skipped, c.Notified)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(r.Housekeeping) > 0 {
		fmt.Fprintln(w, "Housekeeping:")
		for _, hk := range r.Housekeeping {
			if hk.Error != "" {
				fmt.Fprintf(w, "  %s: error: %s\n", hk.Task, hk.Error)
				continue
			}
			fmt.Fprintf(w, "  %s: %d removed\n", hk.Task, hk.Removed)
		}
		fmt.Fprintln(w)
	}

	t := r.Totals
	fmt.Fprintf(w, "Totals: processed=%d successful=%d failed=%d anonymized=%d soft_deleted=%d hard_deleted=%d skipped=%d notified=%d housekept=%d\n",
		t.Processed, t.Successful, t.Failed, t.Anonymized, t.SoftDeleted, t.HardDeleted, t.Skipped, t.Notified, t.Housekept)

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	_, err := fmt.Fprintf(w, "Result: %s\n", successWord(r.Success))
	return err
}

func writeStatus(w io.Writer, s StatusReport) error {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(w, "Engine: %s\n", state)
	fmt.Fprintf(w, "Dry run: %s\n", yesNo(s.DryRun))
	fmt.Fprintf(w, "Batch size: %d  Max records: %d  Concurrency: %d\n", s.BatchSize, s.MaxRecords, s.Concurrency)
	fmt.Fprintf(w, "Storage: %s\n", s.Storage)
	fmt.Fprintf(w, "Notifications: %s\n", s.Notifications)

	if len(s.Schedules) > 0 {
		fmt.Fprintln(w, "Schedules:")
		kinds := make([]string, 0, len(s.Schedules))
		for k := range s.Schedules {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			expr := s.Schedules[k]
			if expr == "" {
				expr = "(disabled)"
			}
			fmt.Fprintf(w, "  %s: %s\n", k, expr)
		}
	}

	fmt.Fprintln(w, "Last runs:")
	if len(s.LastRuns) == 0 {
		_, err := fmt.Fprintln(w, "  none recorded")
		return err
	}
	for _, r := range s.LastRuns {
		fmt.Fprintf(w, "  %s: %s %s (processed %d, failed %d)\n",
			r.Kind, successWord(r.Success),
			humanize.RelTime(r.FinishedAt, s.GeneratedAt, "ago", "from now"),
			r.Processed, r.Failed)
	}
	return nil
}
