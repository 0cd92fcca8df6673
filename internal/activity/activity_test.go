package activity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vthunder/techpm/internal/tracker"
)

// helper: create a Log backed by a temp directory
func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir), filepath.Join(dir, "activity.jsonl")
}

// helper: read all raw entries from the JSONL file
func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

// --- Basic write/read ---

func TestLog_WritesJSONL(t *testing.T) {
	log, path := newTestLog(t)

	ts := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	err := log.Log(Entry{
		Timestamp: ts,
		Type:      TypeMutation,
		Op:        "task.create",
		Summary:   "created task Ship",
		Version:   7,
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Type != TypeMutation {
		t.Errorf("type: got %q, want %q", e.Type, TypeMutation)
	}
	if e.Op != "task.create" || e.Version != 7 {
		t.Errorf("op/version: got %q/%d", e.Op, e.Version)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("timestamp: got %v, want %v", e.Timestamp, ts)
	}
}

func TestLog_CreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	log := New(dir)
	if err := log.Log(Entry{Type: TypeTimer, Summary: "done"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, err := os.Stat(log.Path()); err != nil {
		t.Errorf("expected journal at %s: %v", log.Path(), err)
	}
}

func TestLog_AutoTimestamp(t *testing.T) {
	log, path := newTestLog(t)
	fixed := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	if err := log.Log(Entry{Type: TypeTimer, Summary: "auto-ts"}); err != nil {
		t.Fatal(err)
	}

	entries := readEntries(t, path)
	if len(entries) != 1 || !entries[0].Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %+v", fixed, entries)
	}
}

func TestLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestLog(t)

	if err := log.Log(Entry{Type: TypeMutation, Summary: "good"}); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json at all\n")
	f.Close()

	if err := log.Log(Entry{Type: TypeMutation, Summary: "good2"}); err != nil {
		t.Fatal(err)
	}

	entries, err := log.readAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestLog_EmptyFileReturnsNil(t *testing.T) {
	log, _ := newTestLog(t)
	entries, err := log.readAll()
	if err != nil {
		t.Fatalf("readAll on missing file: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for missing file")
	}
}

// --- Tracker hook ---

func TestRecord_JournalsMutations(t *testing.T) {
	log, path := newTestLog(t)

	tr := tracker.New(tracker.Store{})
	tr.OnChange(log.Record)

	pid, err := tr.CreateProject("Launch", tracker.StagePlanning, "")
	if err != nil {
		t.Fatal(err)
	}
	tid, err := tr.CreateTask("Ship", pid)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkDone(tid); err != nil {
		t.Fatal(err)
	}
	// rejected mutations leave no trace
	tr.CreateTask("   ", pid)

	entries := readEntries(t, path)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantOps := []string{"project.create", "task.create", "task.done"}
	for i, e := range entries {
		if e.Type != TypeMutation || e.Op != wantOps[i] || e.Version != uint64(i+1) {
			t.Errorf("entry %d: got %+v", i, e)
		}
		if e.Summary == "" {
			t.Errorf("entry %d: empty summary", i)
		}
	}
}

func TestRecord_SwallowsWriteErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// the state path is a regular file, so the journal cannot be created
	log := New(blocker)
	log.Record(tracker.Change{Op: "task.create", Version: 1})
}

// --- Helper methods ---

func TestLogExport(t *testing.T) {
	log, path := newTestLog(t)
	if err := log.LogExport("tech-pm-1.json", "/tmp/tech-pm-1.json", 42); err != nil {
		t.Fatal(err)
	}
	e := readEntries(t, path)[0]
	if e.Type != TypeExport || e.Data["key"] != "tech-pm-1.json" || e.Data["size_bytes"].(float64) != 42 {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestLogImport(t *testing.T) {
	log, path := newTestLog(t)
	if err := log.LogImport("backup.json", 3, 5, nil); err != nil {
		t.Fatal(err)
	}
	if err := log.LogImport("broken.json", 0, 0, errors.New("bad json")); err != nil {
		t.Fatal(err)
	}
	entries := readEntries(t, path)
	if entries[0].Data["tasks"].(float64) != 5 || entries[0].Data["error"] != nil {
		t.Errorf("unexpected applied import %+v", entries[0])
	}
	if entries[1].Data["error"] != "bad json" || !strings.HasPrefix(entries[1].Summary, "rejected") {
		t.Errorf("unexpected rejected import %+v", entries[1])
	}
}

func TestLogReminder(t *testing.T) {
	log, path := newTestLog(t)
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	if err := log.LogReminder("t1", "Call back", at); err != nil {
		t.Fatal(err)
	}
	e := readEntries(t, path)[0]
	if e.Type != TypeReminder || e.Data["task_id"] != "t1" || e.Data["at"] != "2026-03-01T18:00:00Z" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestLogError_NilData(t *testing.T) {
	log, path := newTestLog(t)
	if err := log.LogError("save failed", errors.New("disk full"), nil); err != nil {
		t.Fatal(err)
	}
	e := readEntries(t, path)[0]
	if e.Type != TypeError || e.Data["error"] != "disk full" {
		t.Errorf("unexpected entry %+v", e)
	}
}

// --- Queries ---

func TestRecent(t *testing.T) {
	log, _ := newTestLog(t)
	for i := 0; i < 10; i++ {
		log.Log(Entry{Type: TypeMutation, Summary: "entry", Version: uint64(i + 1)})
	}
	entries, err := log.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Version != 8 || entries[2].Version != 10 {
		t.Errorf("unexpected tail %+v", entries)
	}

	all, _ := log.Recent(100)
	if len(all) != 10 {
		t.Errorf("expected 10, got %d", len(all))
	}
	none, _ := log.Recent(0)
	if len(none) != 0 {
		t.Errorf("expected 0, got %d", len(none))
	}
}

func TestStartOfDay(t *testing.T) {
	log, _ := newTestLog(t)
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return now }

	log.Log(Entry{Type: TypeMutation, Summary: "today's entry", Timestamp: now.Add(-time.Hour)})
	log.Log(Entry{Type: TypeMutation, Summary: "yesterday", Timestamp: now.AddDate(0, 0, -1)})

	entries, err := log.Find(Query{Since: log.StartOfDay()})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Summary != "today's entry" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestFind_Text(t *testing.T) {
	log, _ := newTestLog(t)
	log.Log(Entry{Type: TypeMutation, Op: "project.delete", Summary: "deleted project Launch"})
	log.Log(Entry{Type: TypeExport, Summary: "exported", Data: map[string]any{"key": "tech-pm-99.json"}})
	log.Log(Entry{Type: TypeMutation, Op: "task.create", Summary: "created task UPPERCASE"})

	tests := []struct {
		text string
		want int
	}{
		{"launch", 1},
		{"project.delete", 1},
		{"tech-pm-99", 1},
		{"uppercase", 1},
		{"nothing", 0},
	}
	for _, tt := range tests {
		results, err := log.Find(Query{Text: tt.text})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != tt.want {
			t.Errorf("Find(%q): expected %d, got %d", tt.text, tt.want, len(results))
		}
	}

	for i := 0; i < 10; i++ {
		log.Log(Entry{Type: TypeMutation, Summary: "matching entry", Version: uint64(i + 1)})
	}
	results, _ := log.Find(Query{Text: "matching", Limit: 3})
	if len(results) != 3 || results[2].Version != 10 {
		t.Errorf("expected the newest 3 matches, got %+v", results)
	}
}

func TestFind_Type(t *testing.T) {
	log, _ := newTestLog(t)
	log.Log(Entry{Type: TypeMutation, Summary: "m1"})
	log.Log(Entry{Type: TypeExport, Summary: "e1"})
	log.Log(Entry{Type: TypeMutation, Summary: "m2"})

	results, err := log.Find(Query{Type: TypeMutation})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[1].Summary != "m2" {
		t.Errorf("unexpected results %+v", results)
	}
	if limited, _ := log.Find(Query{Type: TypeMutation, Limit: 1}); len(limited) != 1 || limited[0].Summary != "m2" {
		t.Errorf("unexpected limited results %+v", limited)
	}
}

func TestFind_Range(t *testing.T) {
	log, _ := newTestLog(t)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	log.Log(Entry{Type: TypeMutation, Summary: "before", Timestamp: base.Add(-2 * time.Hour)})
	log.Log(Entry{Type: TypeMutation, Summary: "in-range", Timestamp: base})
	log.Log(Entry{Type: TypeMutation, Summary: "after", Timestamp: base.Add(2 * time.Hour)})

	results, err := log.Find(Query{Since: base.Add(-30 * time.Minute), Until: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Summary != "in-range" {
		t.Errorf("unexpected results %+v", results)
	}
}

// --- Concurrency ---

func TestConcurrentWrites(t *testing.T) {
	log, path := newTestLog(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Log(Entry{Type: TypeMutation, Summary: "concurrent"})
		}()
	}
	wg.Wait()

	entries := readEntries(t, path)
	if len(entries) != n {
		t.Errorf("expected %d entries, got %d (possible corruption)", n, len(entries))
	}
}
