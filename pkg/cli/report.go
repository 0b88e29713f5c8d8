package cli

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"mercator-hq/lethe/pkg/retention"
)

// Table is implemented by outputs that render as rows in text and CSV.
type Table interface {
	Header() []string
	Rows() [][]string
}

// PolicyRow describes the effective policy of one category.
type PolicyRow struct {
	Category      retention.Category  `json:"category"`
	Table         string              `json:"table"`
	RetentionDays int                 `json:"retention_days"`
	Operation     retention.Operation `json:"operation,omitempty"`
	NotifyDays    int                 `json:"notification_days,omitempty"`
	ManualReview  bool                `json:"requires_manual_review"`
	LegalBasis    string              `json:"legal_basis"`
}

// NewPolicyRow builds the row of policy stored in table.
func NewPolicyRow(p retention.Policy, table string) PolicyRow {
	row := PolicyRow{
		Category:      p.Category,
		Table:         table,
		RetentionDays: p.RetentionDays,
		ManualReview:  p.RequiresManualReview,
		LegalBasis:    p.LegalBasis,
	}
	if !p.Indefinite() {
		row.Operation = p.Operation()
	}
	if p.Notifies() {
		row.NotifyDays = p.NotificationDays
	}
	return row
}

// PolicyTable lists category policies.
type PolicyTable []PolicyRow

func (t PolicyTable) Header() []string {
	return []string{"CATEGORY", "TABLE", "RETENTION", "OPERATION", "NOTIFY", "REVIEW", "LEGAL BASIS"}
}

func (t PolicyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		retentionCol, op, notify := "indefinite", "keep", "-"
		if p.RetentionDays > 0 {
			retentionCol = strconv.Itoa(p.RetentionDays) + "d"
			op = string(p.Operation)
		}
		if p.NotifyDays > 0 {
			notify = strconv.Itoa(p.NotifyDays) + "d before"
		}
		rows = append(rows, []string{
			string(p.Category), p.Table, retentionCol, op, notify, yesNo(p.ManualReview), p.LegalBasis,
		})
	}
	return rows
}

// CategoryStats summarises the stored rows of one category.
type CategoryStats struct {
	Category                retention.Category `json:"category"`
	Table                   string             `json:"table"`
	Total                   int64              `json:"total"`
	Deleted                 int64              `json:"deleted"`
	EligibleForDeletion     int64              `json:"eligible_for_deletion"`
	EligibleForNotification int64              `json:"eligible_for_notification"`
	FutureDated             int64              `json:"future_dated"`
	Error                   string             `json:"error,omitempty"`
}

// StatsTable lists per-category statistics.
type StatsTable []CategoryStats

func (t StatsTable) Header() []string {
	return []string{"CATEGORY", "TABLE", "TOTAL", "DELETED", "DUE FOR DELETION", "DUE FOR NOTICE", "FUTURE DATED"}
}

func (t StatsTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		if s.Error != "" {
			rows = append(rows, []string{string(s.Category), s.Table, "error: " + s.Error, "", "", "", ""})
			continue
		}
		rows = append(rows, []string{
			string(s.Category), s.Table,
			humanize.Comma(s.Total), humanize.Comma(s.Deleted),
			humanize.Comma(s.EligibleForDeletion), humanize.Comma(s.EligibleForNotification),
			humanize.Comma(s.FutureDated),
		})
	}
	return rows
}

// RunTable lists persisted job runs, newest first.
type RunTable []retention.JobRun

func (t RunTable) Header() []string {
	return []string{"ID", "KIND", "STARTED", "DURATION", "PROCESSED", "FAILED", "RESULT"}
}

func (t RunTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID, string(r.Kind), r.StartedAt.UTC().Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			strconv.FormatInt(r.Processed, 10), strconv.FormatInt(r.Failed, 10),
			successWord(r.Success),
		})
	}
	return rows
}

// StatusReport is the output of the status command.
type StatusReport struct {
	GeneratedAt   time.Time          `json:"generated_at"`
	Enabled       bool               `json:"enabled"`
	DryRun        bool               `json:"dry_run"`
	BatchSize     int                `json:"batch_size"`
	MaxRecords    int                `json:"max_records"`
	Concurrency   int                `json:"concurrency"`
	Storage       string             `json:"storage"`
	Notifications string             `json:"notifications"`
	Schedules     map[string]string  `json:"schedules"`
	LastRuns      []retention.JobRun `json:"last_runs"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func successWord(ok bool) string {
	if ok {
		return "SUCCESS"
	}
	return "FAILED"
}
