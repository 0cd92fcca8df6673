package tracker

import (
	"strings"
	"time"
)

// Stage is the lifecycle phase of a project
type Stage string

const (
	StagePlanning  Stage = "Planning"
	StageExecuting Stage = "Executing"
	StageClosing   Stage = "Closing"
	StagePaused    Stage = "Paused"
	StageArchived  Stage = "Archived"
)

// Stages lists every stage in display order
var Stages = []Stage{StagePlanning, StageExecuting, StageClosing, StagePaused, StageArchived}

// Status is the state of a task
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
)

// Statuses lists every task status in display order
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the canonical stages
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the canonical statuses
func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ParseStage resolves a stage name case-insensitively
func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// ParseStatus resolves a status name case-insensitively.
// "in-progress" and "in_progress" are accepted for InProgress.
func ParseStatus(s string) (Status, bool) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s))
	for _, st := range Statuses {
		if strings.EqualFold(string(st), norm) {
			return st, true
		}
	}
	return "", false
}

// Project is either a root (ParentID empty) or a direct child of a root
type Project struct {
	ID           string
	ParentID     string
	Name         string
	Stage        Stage
	StartAt      string // YYYY-MM-DD or empty
	EndAt        string // YYYY-MM-DD or empty
	Deliverables string
}

// IsRoot reports whether the project sits at the top of the hierarchy
func (p Project) IsRoot() bool {
	return p.ParentID == ""
}

// Task is a unit of work attached to exactly one project
type Task struct {
	ID        string
	ProjectID string
	Title     string
	Status    Status
	DueAt     *time.Time
	Tags      []string
	CreatedAt time.Time
}

// IsDone reports whether the task is complete
func (t Task) IsDone() bool {
	return t.Status == StatusDone
}

// Overdue reports whether an unfinished task's due time is before now.
// A task without a due date is never overdue.
func (t Task) Overdue(now time.Time) bool {
	return t.DueAt != nil && !t.IsDone() && t.DueAt.Before(now)
}

// Store is the complete tracker state. Slices keep insertion order.
type Store struct {
	Projects []Project
	Tasks    []Task
	Motto    string
}

// Clone returns a deep copy that shares no backing arrays with s
func (s Store) Clone() Store {
	out := Store{
		Projects: make([]Project, len(s.Projects)),
		Tasks:    make([]Task, len(s.Tasks)),
		Motto:    s.Motto,
	}
	copy(out.Projects, s.Projects)
	for i, t := range s.Tasks {
		out.Tasks[i] = t.clone()
	}
	return out
}

// FindProject returns the project with the given id
func (s Store) FindProject(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// FindTask returns the task with the given id
func (s Store) FindTask(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return Task{}, false
}

func (t Task) clone() Task {
	c := t
	if t.DueAt != nil {
		due := *t.DueAt
		c.DueAt = &due
	}
	c.Tags = make([]string, len(t.Tags))
	copy(c.Tags, t.Tags)
	return c
}
