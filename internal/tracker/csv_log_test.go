package tracker_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/YKarmar/RoleMatch/internal/tracker"
	"github.com/YKarmar/RoleMatch/internal/types"
)

const wantHeader = "Post ID,Job Title,Company,Contact Email,Status,Relevance,Notes,Date Processed\n"

func entry(id, email string, at time.Time) types.LogEntry {
	return types.LogEntry{
		PostID:        id,
		JobTitle:      "Backend Intern",
		Company:       "Acme, Inc.",
		ContactEmail:  email,
		Status:        types.StatusSent,
		Relevance:     "YES",
		Notes:         "Mail sent | Subject: \"Application\"",
		DateProcessed: at,
	}
}

// ── Open ───────────────────────────────────────────────────────────────────

func TestOpen_CreatesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "job_tracker.csv")
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != wantHeader {
		t.Errorf("new log content = %q, want header only", b)
	}
	entries, err := l.Load()
	if err != nil || len(entries) != 0 {
		t.Errorf("Load on new log = %v, %v", entries, err)
	}
}

func TestOpen_RejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Open(path); err == nil {
		t.Error("Open should refuse a CSV with a different header")
	}
}

func TestOpen_KeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	content := wantHeader + "3,Dev,Foo,a@foo.in,SENT,YES,Mail sent,2024-05-01 10:30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != content {
		t.Errorf("Open rewrote an existing log: %q", b)
	}
}

// ── Append / Load ──────────────────────────────────────────────────────────

func TestAppend_RoundTripPreservesPriorRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	first := entry("1", "hr@acme.in", at)
	if err := l.Append(first); err != nil {
		t.Fatalf("Append first: %v", err)
	}
	before, _ := os.ReadFile(path)

	second := entry("2", "jobs@beta.in", at.Add(time.Hour))
	second.Notes = "multi\nline, \"quoted\""
	if err := l.Append(second); err != nil {
		t.Fatalf("Append second: %v", err)
	}

	after, _ := os.ReadFile(path)
	if !bytes.HasPrefix(after, before) {
		t.Error("Append modified bytes that were already in the file")
	}

	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []types.LogEntry{first, second}
	if len(got) != len(want) {
		t.Fatalf("Load returned %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].DateProcessed.Equal(want[i].DateProcessed) {
			t.Errorf("row %d date = %v, want %v", i, got[i].DateProcessed, want[i].DateProcessed)
		}
		got[i].DateProcessed, want[i].DateProcessed = time.Time{}, time.Time{}
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("row %d = %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestAppend_RepairsMissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	content := wantHeader + "1,Dev,Foo,a@foo.in,SENT,YES,n,2024-05-01 10:30"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Append(entry("2", "b@bar.in", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].ContactEmail != "a@foo.in" || got[1].ContactEmail != "b@bar.in" {
		t.Errorf("rows = %+v", got)
	}
}

func TestLoad_ToleratesForeignDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	content := wantHeader +
		"1,Dev,Foo,a@foo.in,SENT,YES,n,2024-05-01T10:30:00Z\n" +
		"2,Dev,Foo,b@foo.in,SENT,YES,n,yesterday\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got[0].DateProcessed.IsZero() {
		t.Error("RFC3339 date should parse")
	}
	if !got[1].DateProcessed.IsZero() {
		t.Error("unparsable date should load as zero time")
	}
}

// ── SentSet ────────────────────────────────────────────────────────────────

func TestSentSet_OnlySentRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	content := wantHeader +
		"1,Dev,Foo,A@Foo.in,SENT,YES,n,\n" +
		"2,Dev,Bar,b@bar.in,FAILED,YES,n,\n" +
		"3,Dev,Baz,c@baz.in, sent ,YES,n,\n" +
		"4,Dev,Qux,,SENT,YES,n,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sent, err := l.SentSet()
	if err != nil {
		t.Fatalf("SentSet: %v", err)
	}
	if len(sent) != 2 || !sent.Contains("a@foo.in") || !sent.Contains("c@baz.in") {
		t.Errorf("SentSet = %v", sent)
	}
}

func TestSentSet_SeesExternalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_tracker.csv")
	l, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	other, err := tracker.Open(path)
	if err != nil {
		t.Fatalf("Open second handle: %v", err)
	}
	if err := other.Append(entry("9", "late@x.in", time.Now())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	sent, err := l.SentSet()
	if err != nil {
		t.Fatalf("SentSet: %v", err)
	}
	if !sent.Contains("late@x.in") {
		t.Error("SentSet must re-read the file on every call")
	}
}

// ── Stats ──────────────────────────────────────────────────────────────────

func TestComputeStats(t *testing.T) {
	now := time.Now()
	entries := []types.LogEntry{
		{Company: "Beta", Status: "SENT", DateProcessed: now},
		{Company: "Acme", Status: "sent", DateProcessed: now},
		{Company: "Acme", Status: "SENT", DateProcessed: now.AddDate(0, 0, -2)},
		{Company: "", Status: "NOTE"},
	}
	st := tracker.ComputeStats(entries)
	if st.Total != 4 || st.ByStatus[types.StatusSent] != 3 || st.ByStatus["NOTE"] != 1 {
		t.Errorf("stats = %+v", st)
	}
	want := []tracker.CompanyCount{{"Acme", 2}, {"Beta", 1}}
	if !reflect.DeepEqual(st.TopCompanies, want) {
		t.Errorf("TopCompanies = %v, want %v", st.TopCompanies, want)
	}
	if n := tracker.SentOn(entries, now); n != 2 {
		t.Errorf("SentOn(today) = %d, want 2", n)
	}

	var buf bytes.Buffer
	tracker.PrintStatistics(&buf, entries)
	if !strings.Contains(buf.String(), "Acme: 2") {
		t.Errorf("PrintStatistics output missing company line:\n%s", buf.String())
	}
}
