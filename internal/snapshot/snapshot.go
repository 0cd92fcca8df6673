// Package snapshot converts the tracker state to and from the JSON
// interchange format shared by persistence, export and import.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/techpm/internal/tracker"
)

// ContentType of encoded snapshots
const ContentType = "application/json"

type wireProject struct {
	ID           string  `json:"id"`
	ParentID     *string `json:"parentId"`
	Name         string  `json:"name"`
	Stage        string  `json:"stage"`
	StartAt      *string `json:"startAt"`
	EndAt        *string `json:"endAt"`
	Deliverables string  `json:"deliverables"`
}

type wireTask struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	DueAt     *string  `json:"dueAt"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
}

type wireStore struct {
	Projects *[]wireProject `json:"projects"`
	Tasks    *[]wireTask    `json:"tasks"`
	Motto    string         `json:"motto"`
}

// legacyStages and legacyStatuses map the labels written by the original
// browser build of the tracker.
var legacyStages = map[string]tracker.Stage{
	"规划": tracker.StagePlanning,
	"执行": tracker.StageExecuting,
	"收尾": tracker.StageClosing,
	"暂停": tracker.StagePaused,
	"归档": tracker.StageArchived,
}

var legacyStatuses = map[string]tracker.Status{
	"待办":  tracker.StatusTodo,
	"进行中": tracker.StatusInProgress,
	"完成":  tracker.StatusDone,
}

// Encode serializes the whole store as indented JSON
func Encode(s tracker.Store) ([]byte, error) {
	projects := make([]wireProject, 0, len(s.Projects))
	for _, p := range s.Projects {
		projects = append(projects, wireProject{
			ID:           p.ID,
			ParentID:     optional(p.ParentID),
			Name:         p.Name,
			Stage:        string(p.Stage),
			StartAt:      optional(p.StartAt),
			EndAt:        optional(p.EndAt),
			Deliverables: p.Deliverables,
		})
	}

	tasks := make([]wireTask, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		wt := wireTask{
			ID:        t.ID,
			ProjectID: t.ProjectID,
			Title:     t.Title,
			Status:    string(t.Status),
			Tags:      t.Tags,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if wt.Tags == nil {
			wt.Tags = []string{}
		}
		if t.DueAt != nil {
			due := t.DueAt.UTC().Format(time.RFC3339Nano)
			wt.DueAt = &due
		}
		tasks = append(tasks, wt)
	}

	data, err := json.MarshalIndent(wireStore{Projects: &projects, Tasks: &tasks, Motto: s.Motto}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. Any syntax error, schema mismatch or broken
// reference is reported as tracker.ErrSerialization.
func Decode(data []byte) (tracker.Store, error) {
	const op = "decode snapshot"

	var w wireStore
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return tracker.Store{}, tracker.Serializationf(op, "%v", err)
	}
	if w.Projects == nil || w.Tasks == nil {
		return tracker.Store{}, tracker.Serializationf(op, "projects and tasks arrays are required")
	}

	s := tracker.Store{
		Projects: make([]tracker.Project, 0, len(*w.Projects)),
		Tasks:    make([]tracker.Task, 0, len(*w.Tasks)),
		Motto:    w.Motto,
	}

	for i, wp := range *w.Projects {
		stage, ok := parseStage(wp.Stage)
		if !ok {
			return tracker.Store{}, tracker.Serializationf(op, "project %d: unknown stage %q", i, wp.Stage)
		}
		s.Projects = append(s.Projects, tracker.Project{
			ID:           wp.ID,
			ParentID:     deref(wp.ParentID),
			Name:         wp.Name,
			Stage:        stage,
			StartAt:      dateOnly(deref(wp.StartAt)),
			EndAt:        dateOnly(deref(wp.EndAt)),
			Deliverables: wp.Deliverables,
		})
	}

	for i, wt := range *w.Tasks {
		status, ok := parseStatus(wt.Status)
		if !ok {
			return tracker.Store{}, tracker.Serializationf(op, "task %d: unknown status %q", i, wt.Status)
		}
		created, err := time.Parse(time.RFC3339Nano, wt.CreatedAt)
		if err != nil {
			return tracker.Store{}, tracker.Serializationf(op, "task %d: bad createdAt %q", i, wt.CreatedAt)
		}
		task := tracker.Task{
			ID:        wt.ID,
			ProjectID: wt.ProjectID,
			Title:     wt.Title,
			Status:    status,
			Tags:      wt.Tags,
			CreatedAt: tracker.Normalize(created),
		}
		if task.Tags == nil {
			task.Tags = []string{}
		}
		if due := deref(wt.DueAt); due != "" {
			t, ok := tracker.ParseDue(due, time.Local)
			if !ok {
				return tracker.Store{}, tracker.Serializationf(op, "task %d: bad dueAt %q", i, due)
			}
			task.DueAt = &t
		}
		s.Tasks = append(s.Tasks, task)
	}

	if err := tracker.Validate(s); err != nil {
		return tracker.Store{}, tracker.Serializationf(op, "%v", err)
	}
	return s, nil
}

// ExportName is the artifact name for an export taken at now
func ExportName(now time.Time) string {
	return fmt.Sprintf("tech-pm-%d.json", now.UnixMilli())
}

func parseStage(s string) (tracker.Stage, bool) {
	if st, ok := legacyStages[s]; ok {
		return st, true
	}
	return tracker.ParseStage(s)
}

func parseStatus(s string) (tracker.Status, bool) {
	if st, ok := legacyStatuses[s]; ok {
		return st, true
	}
	return tracker.ParseStatus(s)
}

// dateOnly reduces a stored project date to YYYY-MM-DD. Older snapshots hold
// the UTC instant of local midnight, so zoned timestamps are read back in
// the local zone before the day is taken.
func dateOnly(s string) string {
	if len(s) <= 10 {
		return s
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(time.Local).Format("2006-01-02")
	}
	if s[4] == '-' && s[7] == '-' && strings.ContainsAny(s[10:11], "T ") {
		return s[:10]
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
