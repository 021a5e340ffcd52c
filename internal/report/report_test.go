package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"replywatch/internal/classify"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return recs
}

func TestAppendWritesHeaderOnceAndRows(t *testing.T) {
	dir := t.TempDir()
	summary := filepath.Join(dir, "logs", "summary.csv")
	trail := filepath.Join(dir, "logs", "trail.log")

	client := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	rows := []Row{
		{ChannelName: "client-acme", ChannelID: "C1", C: classify.Classification{
			Status: classify.StatusAnswered, ClientAt: client, ClientText: "line one\nline \"two\"",
			ReplyAt: client.Add(90 * time.Minute), ReplyText: "done, thanks", ElapsedHours: 1.5,
		}},
		{ChannelName: "client-beta", ChannelID: "C2", C: classify.Classification{
			Status: classify.StatusRemind, ClientAt: client, ClientText: "anyone?", ElapsedHours: 5.25,
		}},
	}

	w, err := New(summary, trail, time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Append(rows[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Re-opening must not duplicate the header.
	w, err = New(summary, trail, time.UTC)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	if err := w.Append(rows[1]); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := readCSV(t, summary)
	if len(s) != 3 {
		t.Fatalf("summary rows = %d, want 3", len(s))
	}
	if strings.Join(s[0], ",") != strings.Join(SummaryHeader, ",") {
		t.Fatalf("summary header = %v", s[0])
	}
	want := []string{"client-acme", "C1", "2026-10-16T13:00:00Z", "2026-10-16T14:30:00Z", "1.50", "answered"}
	if strings.Join(s[1], "|") != strings.Join(want, "|") {
		t.Fatalf("summary row = %v, want %v", s[1], want)
	}
	if s[2][3] != "" || s[2][4] != "" || s[2][5] != "remind" {
		t.Fatalf("unanswered summary row = %v", s[2])
	}

	tr := readCSV(t, trail)
	if len(tr) != 3 {
		t.Fatalf("trail rows = %d, want 3", len(tr))
	}
	if tr[1][3] != `line one line "two"` {
		t.Fatalf("client_text = %q", tr[1][3])
	}
	if tr[2][6] != "5.25" || tr[2][7] != "remind" {
		t.Fatalf("trail row = %v", tr[2])
	}
}

func TestTimestampsUseConfiguredZone(t *testing.T) {
	loc := time.FixedZone("X", -4*3600)
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "s.csv"), filepath.Join(dir, "t.csv"), loc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)
	if err := w.Append(Row{ChannelID: "C1", C: classify.Classification{Status: classify.StatusWaiting, ClientAt: at}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	s := readCSV(t, filepath.Join(dir, "s.csv"))
	if s[1][2] != "2026-10-16T09:00:00-04:00" {
		t.Fatalf("client_ts = %q", s[1][2])
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	if got := Sanitize("  a\r\nb\nc\rd  "); got != "a b c d" {
		t.Fatalf("Sanitize = %q", got)
	}
}
