// Package report appends per-cycle classification rows to two CSV files:
// a compact summary and a trail that also carries the message texts.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"replywatch/internal/classify"
)

var (
	SummaryHeader = []string{"channel_name", "channel_id", "client_ts", "reply_ts", "hours_to_reply", "status"}
	TrailHeader   = []string{"channel_name", "channel_id", "client_ts", "client_text", "reply_ts", "reply_text", "elapsed_hours", "status"}
)

// Row is one evaluated channel.
type Row struct {
	ChannelName string
	ChannelID   string
	C           classify.Classification
}

// Writer appends rows. Files are opened per write so external rotation is safe.
type Writer struct {
	summaryPath string
	trailPath   string
	loc         *time.Location

	mu sync.Mutex
}

// New ensures both files exist with headers. loc is used to render timestamps.
func New(summaryPath, trailPath string, loc *time.Location) (*Writer, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := &Writer{summaryPath: summaryPath, trailPath: trailPath, loc: loc}
	if err := ensureHeader(summaryPath, SummaryHeader); err != nil {
		return nil, err
	}
	if err := ensureHeader(trailPath, TrailHeader); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) Paths() (summary, trail string) { return w.summaryPath, w.trailPath }

// Append writes the summary row and the trail row for r.
func (w *Writer) Append(r Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := r.C
	clientTS := w.ts(c.ClientAt)
	replyTS := w.ts(c.ReplyAt)

	hoursToReply := ""
	if c.Answered() {
		hoursToReply = hours(c.ElapsedHours)
	}
	summary := []string{r.ChannelName, r.ChannelID, clientTS, replyTS, hoursToReply, string(c.Status)}
	trail := []string{
		r.ChannelName, r.ChannelID,
		clientTS, Sanitize(c.ClientText),
		replyTS, Sanitize(c.ReplyText),
		hours(c.ElapsedHours), string(c.Status),
	}

	if err := appendRecord(w.summaryPath, summary); err != nil {
		return fmt.Errorf("summary row: %w", err)
	}
	if err := appendRecord(w.trailPath, trail); err != nil {
		return fmt.Errorf("trail row: %w", err)
	}
	return nil
}

func (w *Writer) ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(w.loc).Format(time.RFC3339)
}

func hours(h float64) string { return strconv.FormatFloat(h, 'f', 2, 64) }

var sanitizer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Sanitize flattens text onto one line. Quoting is left to the CSV encoder.
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(s))
}

func ensureHeader(path string, header []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := os.Stat(path)
	if err == nil && st.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return appendRecord(path, header)
}

func appendRecord(path string, rec []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(rec); err != nil {
		_ = f.Close()
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
