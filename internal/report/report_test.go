package report

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestRunSummaryRecordAndTotals(t *testing.T) {
	rs := NewRunSummary()
	rs.Record("route-views2", "2022.10", 5, 3)
	rs.Record("rrc00", "2022.10", 2, 2)
	rs.Finish()

	attempted, inserted := rs.Totals()
	if attempted != 7 {
		t.Errorf("attempted = %d, want 7", attempted)
	}
	if inserted != 5 {
		t.Errorf("inserted = %d, want 5", inserted)
	}
}

func TestRunSummaryRecordIsConcurrencySafe(t *testing.T) {
	rs := NewRunSummary()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs.Record("route-views2", "2022.10", 1, 1)
		}()
	}
	wg.Wait()
	rs.Finish()

	attempted, inserted := rs.Totals()
	if attempted != 50 || inserted != 50 {
		t.Errorf("attempted=%d inserted=%d, want 50/50", attempted, inserted)
	}
}

func TestWriteJSON(t *testing.T) {
	rs := NewRunSummary()
	rs.Record("route-views2", "2022.10", 5, 3)
	rs.Finish()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"TotalAttempted": 5`) {
		t.Errorf("expected JSON to contain TotalAttempted: 5, got %s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	rs := NewRunSummary()
	rs.Record("route-views2", "2022.10", 5, 3)
	rs.Finish()

	var buf bytes.Buffer
	if err := WriteText(&buf, rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Attempted:  5") {
		t.Errorf("expected text to contain Attempted:  5, got %s", out)
	}
	if !strings.Contains(out, "route-views2 2022.10: attempted=5 inserted=3") {
		t.Errorf("expected per-entry line, got %s", out)
	}
}

func TestWriteTextWithNoEntries(t *testing.T) {
	rs := NewRunSummary()
	rs.Finish()

	var buf bytes.Buffer
	if err := WriteText(&buf, rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "None") {
		t.Errorf("expected None placeholder for empty entries")
	}
}
