// Package audit records analysis runs as JSON lines, one file per day.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalgo.org/tagscope/internal/analysis"
	"evalgo.org/tagscope/internal/config"
	"evalgo.org/tagscope/models"
)

// Operation types.
const (
	OpAnalyze = "analyze"
	OpWatch   = "watch"
)

// Entry is one audit record.
type Entry struct {
	// ID uniquely identifies this audit entry
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Operation is analyze or watch
	Operation string `json:"operation"`

	// ReportID is the deterministic id of the produced report
	ReportID string `json:"report_id"`

	// Source names the analyzed input (file path, "api" or "-")
	Source string `json:"source,omitempty"`

	Score       float64                 `json:"score"`
	Status      models.Status           `json:"status"`
	Issues      int                     `json:"issues"`
	Counts      map[models.Severity]int `json:"counts"`
	Unavailable []string                `json:"unavailable,omitempty"`
	DurationMS  int64                   `json:"duration_ms"`
}

// Query selects audit entries. Zero fields do not filter.
type Query struct {
	StartTime time.Time
	EndTime   time.Time
	Operation string
	ReportID  string

	// Limit caps the number of results, newest files first
	Limit int
}

// Logger appends entries to the audit directory.
type Logger struct {
	cfg       config.AuditConfig
	file      *os.File
	day       string
	mu        sync.Mutex
	buffer    []Entry
	flushSize int
	now       func() time.Time
}

// New creates an audit logger. A disabled config yields a logger whose
// methods do nothing.
func New(cfg config.AuditConfig) (*Logger, error) {
	l := &Logger{cfg: cfg, flushSize: 16, now: time.Now}
	if !cfg.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	l.buffer = make([]Entry, 0, l.flushSize)
	return l, nil
}

// Enabled reports whether entries are recorded.
func (l *Logger) Enabled() bool {
	return l != nil && l.cfg.Enabled
}

func (l *Logger) filename(day string) string {
	return filepath.Join(l.cfg.Path, fmt.Sprintf("analysis-audit-%s.jsonl", day))
}

func (l *Logger) open() error {
	day := l.now().Format("2006-01-02")
	file, err := os.OpenFile(l.filename(day), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.day = day
	return nil
}

// LogAnalysis records one analysis run.
func (l *Logger) LogAnalysis(op, source string, r *analysis.Report, took time.Duration) error {
	if !l.Enabled() || r == nil {
		return nil
	}

	entry := Entry{
		ID:          uuid.New().String(),
		Timestamp:   l.now().UTC(),
		Operation:   op,
		ReportID:    r.ID,
		Source:      source,
		Score:       r.Quality.Total,
		Status:      r.Quality.Status,
		Issues:      len(r.Issues),
		Counts:      r.Counts(),
		Unavailable: r.Unavailable,
		DurationMS:  took.Milliseconds(),
	}
	return l.write(entry)
}

func (l *Logger) write(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, entry)
	if len(l.buffer) >= l.flushSize {
		return l.flushLocked()
	}
	return nil
}

// Flush writes buffered entries to disk.
func (l *Logger) Flush() error {
	if !l.Enabled() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Logger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	if day := l.now().Format("2006-01-02"); day != l.day {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}

	for _, entry := range l.buffer {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		if _, err := fmt.Fprintf(l.file, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	l.buffer = l.buffer[:0]
	return nil
}

func (l *Logger) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log file: %w", err)
	}
	return l.open()
}

// Close flushes remaining entries and closes the file.
func (l *Logger) Close() error {
	if !l.Enabled() || l.file == nil {
		return nil
	}
	if err := l.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// Query returns the entries matching q in chronological order. Buffered
// entries are flushed first.
func (l *Logger) Query(q Query) ([]Entry, error) {
	if !l.Enabled() {
		return nil, fmt.Errorf("audit logging is not enabled")
	}
	if err := l.Flush(); err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(l.cfg.Path, "analysis-audit-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}
	sort.Strings(files)

	out := []Entry{}
	for _, name := range files {
		entries, err := readFile(name)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if q.matches(e) {
				out = append(out, e)
			}
		}
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (q Query) matches(e Entry) bool {
	if !q.StartTime.IsZero() && e.Timestamp.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && e.Timestamp.After(q.EndTime) {
		return false
	}
	if q.Operation != "" && e.Operation != q.Operation {
		return false
	}
	if q.ReportID != "" && e.ReportID != q.ReportID {
		return false
	}
	return true
}

func readFile(name string) ([]Entry, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// a torn line from a crash does not hide the rest of the file
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit file %s: %w", name, err)
	}
	return entries, nil
}
