// Package report builds human/JSON summaries of an ingestion run: per
// (collector, month) attempted-versus-inserted counts, the way the
// original updater logged "total of N months to scrape" before fanning
// out, but collected into a single end-of-run artifact instead of only
// scattered log lines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/template"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// Summary is one (collector, month) scrape outcome.
type Summary struct {
	CollectorID string
	Month       catalog.MonthToken
	Attempted   int
	Inserted    int
}

// RunSummary aggregates Summary entries across an entire orchestrator run.
// Record is safe to call concurrently from multiple collector goroutines.
type RunSummary struct {
	mu        sync.Mutex
	entries   []Summary
	startTime time.Time
	endTime   time.Time
}

// NewRunSummary starts a new run summary with its clock running.
func NewRunSummary() *RunSummary {
	return &RunSummary{startTime: time.Now()}
}

// Record appends one (collector, month) outcome. Safe for concurrent use.
func (r *RunSummary) Record(collectorID string, month catalog.MonthToken, attempted, inserted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Summary{
		CollectorID: collectorID,
		Month:       month,
		Attempted:   attempted,
		Inserted:    inserted,
	})
}

// Finish stops the run summary's clock. Call once after every collector
// has been scraped.
func (r *RunSummary) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endTime = time.Now()
}

// Totals returns the run-wide attempted and inserted counts.
func (r *RunSummary) Totals() (attempted, inserted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		attempted += e.Attempted
		inserted += e.Inserted
	}
	return attempted, inserted
}

// runSummaryView is the JSON/template-friendly snapshot of a RunSummary,
// taken once under lock so rendering never races with Record.
type runSummaryView struct {
	Entries        []Summary
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalAttempted int
	TotalInserted  int
}

func (r *RunSummary) view() runSummaryView {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := runSummaryView{
		Entries:   append([]Summary(nil), r.entries...),
		StartTime: r.startTime,
		EndTime:   r.endTime,
	}
	if v.EndTime.IsZero() {
		v.EndTime = time.Now()
	}
	v.Duration = v.EndTime.Sub(v.StartTime)
	for _, e := range r.entries {
		v.TotalAttempted += e.Attempted
		v.TotalInserted += e.Inserted
	}
	return v
}

// WriteJSON writes the run summary to w as indented JSON.
func WriteJSON(w io.Writer, r *RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.view()); err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return nil
}

const textTmpl = `Ingestion Run Summary
----------------------
Time:       {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:   {{.Duration}}
Attempted:  {{.TotalAttempted}}
Inserted:   {{.TotalInserted}}

Per collector/month:
{{- range .Entries}}
  {{.CollectorID}} {{.Month}}: attempted={{.Attempted}} inserted={{.Inserted}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to w.
func WriteText(w io.Writer, r *RunSummary) error {
	t, err := template.New("runSummary").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse run summary template: %w", err)
	}
	if err := t.Execute(w, r.view()); err != nil {
		return fmt.Errorf("render run summary: %w", err)
	}
	return nil
}
