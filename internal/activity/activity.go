package activity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/tracker"
)

// Type identifies what kind of activity this is
type Type string

const (
	TypeMutation Type = "mutation" // Store mutation committed
	TypeExport   Type = "export"   // Snapshot exported
	TypeImport   Type = "import"   // Snapshot imported (or rejected)
	TypeReminder Type = "reminder" // Due reminder scheduled
	TypeTimer    Type = "timer"    // Focus timer finished
	TypeError    Type = "error"    // Something went wrong
)

// Entry represents a single journal entry
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	Summary   string         `json:"summary"`
	Op        string         `json:"op,omitempty"`      // Store operation for mutations
	Version   uint64         `json:"version,omitempty"` // Store version after the mutation
	Data      map[string]any `json:"data,omitempty"`    // Structured details
}

// Log is the activity journal
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a journal at <statePath>/activity.jsonl
func New(statePath string) *Log {
	return &Log{
		path: filepath.Join(statePath, "activity.jsonl"),
		now:  time.Now,
	}
}

// Path returns the journal file
func (l *Log) Path() string { return l.path }

// Log appends an entry to the journal
func (l *Log) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Record is a tracker change hook. Journal failures are logged, never returned.
func (l *Log) Record(c tracker.Change) {
	err := l.Log(Entry{
		Type:    TypeMutation,
		Op:      c.Op,
		Summary: c.Summary,
		Version: c.Version,
	})
	if err != nil {
		logging.Warn("activity", "failed to journal %s: %v", c.Op, err)
	}
}

// LogExport logs a written export artifact
func (l *Log) LogExport(key, location string, size int64) error {
	return l.Log(Entry{
		Type:    TypeExport,
		Summary: "exported " + key,
		Data: map[string]any{
			"key":        key,
			"location":   location,
			"size_bytes": size,
		},
	})
}

// LogImport logs an import attempt; a nil err means it was applied
func (l *Log) LogImport(source string, projects, tasks int, err error) error {
	data := map[string]any{"source": source}
	summary := "imported " + source
	if err != nil {
		data["error"] = err.Error()
		summary = "rejected import " + source
	} else {
		data["projects"] = projects
		data["tasks"] = tasks
	}
	return l.Log(Entry{Type: TypeImport, Summary: summary, Data: data})
}

// LogReminder logs a scheduled due reminder
func (l *Log) LogReminder(taskID, title string, at time.Time) error {
	return l.Log(Entry{
		Type:    TypeReminder,
		Summary: "reminder for " + title,
		Data: map[string]any{
			"task_id": taskID,
			"at":      at.UTC().Format(time.RFC3339),
		},
	})
}

// LogTimer logs a completed focus session
func (l *Log) LogTimer(summary string) error {
	return l.Log(Entry{Type: TypeTimer, Summary: summary})
}

// LogError logs an error
func (l *Log) LogError(summary string, err error, data map[string]any) error {
	if data == nil {
		data = make(map[string]any)
	}
	data["error"] = err.Error()
	return l.Log(Entry{
		Type:    TypeError,
		Summary: summary,
		Data:    data,
	})
}

// Query selects journal entries. Zero fields match everything.
type Query struct {
	Type  Type
	Text  string // case-insensitive; matched against summary, op and data
	Since time.Time
	Until time.Time
	Limit int // keep only the newest Limit matches
}

func (q Query) match(e Entry) bool {
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	if q.Text == "" {
		return true
	}
	text := strings.ToLower(q.Text)
	if strings.Contains(strings.ToLower(e.Summary), text) || strings.Contains(strings.ToLower(e.Op), text) {
		return true
	}
	if len(e.Data) == 0 {
		return false
	}
	data, _ := json.Marshal(e.Data)
	return strings.Contains(strings.ToLower(string(data)), text)
}

// Find returns the entries matching q, oldest first
func (l *Log) Find(q Query) ([]Entry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}

	var result []Entry
	for _, e := range entries {
		if q.match(e) {
			result = append(result, e)
		}
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result, nil
}

// Recent returns the last n entries
func (l *Log) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	return l.Find(Query{Limit: n})
}

// StartOfDay is local midnight of the current day, for Query.Since
func (l *Log) StartOfDay() time.Time {
	now := l.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// readAll streams every well-formed entry from the journal file
func (l *Log) readAll() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if json.Unmarshal(line, &entry) != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, sc.Err()
}
