package tracker

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Change describes one committed mutation. Store is a private copy of the
// state after the mutation.
type Change struct {
	Op      string
	Summary string
	Version uint64
	Store   Store
}

// Tracker owns the tracker state. Every mutation replaces the state with a
// fresh copy, so snapshots handed out earlier never change underneath readers.
type Tracker struct {
	mu      sync.RWMutex
	state   Store
	version uint64

	// emitMu serializes commits together with their change notifications so
	// listeners observe versions in order.
	emitMu    sync.Mutex
	listeners []func(Change)

	now   func() time.Time
	newID func() string
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source used for CreatedAt
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDs overrides id generation
func WithIDs(newID func() string) Option {
	return func(t *Tracker) { t.newID = newID }
}

// New creates a tracker seeded with initial. The initial store is copied.
func New(initial Store, opts ...Option) *Tracker {
	t := &Tracker{
		state: initial.Clone(),
		now:   time.Now,
		newID: newID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newID() string {
	return uuid.NewString()
}

// OnChange registers fn to run after every committed mutation. Listeners run
// synchronously in registration order and must not mutate the tracker.
func (t *Tracker) OnChange(fn func(Change)) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Snapshot returns a deep copy of the current state
func (t *Tracker) Snapshot() Store {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}

// Version increases by one with every committed mutation
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// commit applies fn to a copy of the state and swaps it in if fn succeeds.
func (t *Tracker) commit(op string, fn func(s *Store) (string, error)) error {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	next := t.state.Clone()
	summary, err := fn(&next)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = next
	t.version++
	change := Change{Op: op, Summary: summary, Version: t.version, Store: next.Clone()}
	t.mu.Unlock()

	for _, fn := range t.listeners {
		fn(change)
	}
	return nil
}

// CreateProject adds a root project (parentID empty) or a child of an
// existing root and returns the new id.
func (t *Tracker) CreateProject(name string, stage Stage, parentID string) (string, error) {
	const op = "create project"

	name = strings.TrimSpace(name)
	if name == "" {
		return "", Validationf(op, "project name is required")
	}
	if stage == "" {
		stage = StagePlanning
	}
	if !stage.Valid() {
		return "", Validationf(op, "unknown stage %q", stage)
	}

	var id string
	err := t.commit("project.create", func(s *Store) (string, error) {
		if parentID != "" {
			parent, ok := s.FindProject(parentID)
			if !ok {
				return "", NotFoundf(op, "parent project %s", parentID)
			}
			if !parent.IsRoot() {
				return "", Validationf(op, "parent %q is itself a sub-project", parent.Name)
			}
		}
		id = t.newID()
		s.Projects = append(s.Projects, Project{
			ID:       id,
			ParentID: parentID,
			Name:     name,
			Stage:    stage,
		})
		return "created project " + name, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeletePlan describes what DeleteProject would remove
type DeletePlan struct {
	ProjectIDs []string
	TaskIDs    []string
	// NeedsConfirmation is set when the delete reaches beyond the project
	// itself: it has sub-projects or any task in the closure.
	NeedsConfirmation bool
}

// closure returns the project id plus the ids of its direct children
func closure(s Store, id string) map[string]bool {
	ids := map[string]bool{id: true}
	for _, p := range s.Projects {
		if p.ParentID == id {
			ids[p.ID] = true
		}
	}
	return ids
}

// PlanDelete computes the cascade for id without changing anything
func (t *Tracker) PlanDelete(id string) (DeletePlan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.state.FindProject(id); !ok {
		return DeletePlan{}, NotFoundf("plan delete", "project %s", id)
	}
	ids := closure(t.state, id)
	plan := DeletePlan{}
	for _, p := range t.state.Projects {
		if ids[p.ID] {
			plan.ProjectIDs = append(plan.ProjectIDs, p.ID)
		}
	}
	for _, task := range t.state.Tasks {
		if ids[task.ProjectID] {
			plan.TaskIDs = append(plan.TaskIDs, task.ID)
		}
	}
	plan.NeedsConfirmation = len(plan.ProjectIDs) > 1 || len(plan.TaskIDs) > 0
	return plan, nil
}

// DeleteProject removes the project, its direct children and every task
// attached to any of them. Confirmation is the caller's concern.
func (t *Tracker) DeleteProject(id string) error {
	return t.commit("project.delete", func(s *Store) (string, error) {
		target, ok := s.FindProject(id)
		if !ok {
			return "", NotFoundf("delete project", "project %s", id)
		}
		ids := closure(*s, id)

		projects := make([]Project, 0, len(s.Projects))
		for _, p := range s.Projects {
			if !ids[p.ID] {
				projects = append(projects, p)
			}
		}
		tasks := make([]Task, 0, len(s.Tasks))
		removed := 0
		for _, task := range s.Tasks {
			if ids[task.ProjectID] {
				removed++
				continue
			}
			tasks = append(tasks, task)
		}
		s.Projects = projects
		s.Tasks = tasks
		return formatDeleteSummary(target.Name, len(ids)-1, removed), nil
	})
}

// CreateTask prepends a Todo task. An empty projectID falls back to the
// first root project.
func (t *Tracker) CreateTask(title, projectID string) (string, error) {
	const op = "create task"

	title = strings.TrimSpace(title)
	if title == "" {
		return "", Validationf(op, "task title is required")
	}

	var id string
	err := t.commit("task.create", func(s *Store) (string, error) {
		pid := projectID
		if pid == "" {
			for _, p := range s.Projects {
				if p.IsRoot() {
					pid = p.ID
					break
				}
			}
			if pid == "" {
				return "", NotFoundf(op, "create a project first")
			}
		} else if _, ok := s.FindProject(pid); !ok {
			return "", NotFoundf(op, "project %s", pid)
		}

		id = t.newID()
		task := Task{
			ID:        id,
			ProjectID: pid,
			Title:     title,
			Status:    StatusTodo,
			Tags:      []string{},
			CreatedAt: Normalize(t.now()),
		}
		s.Tasks = append([]Task{task}, s.Tasks...)
		return "created task " + title, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// updateTask applies fn to the task with the given id
func (t *Tracker) updateTask(op, id string, fn func(task *Task) (string, error)) error {
	return t.commit(op, func(s *Store) (string, error) {
		for i := range s.Tasks {
			if s.Tasks[i].ID == id {
				return fn(&s.Tasks[i])
			}
		}
		return "", NotFoundf(op, "task %s", id)
	})
}

// SetTaskStatus moves a task to any status
func (t *Tracker) SetTaskStatus(id string, status Status) error {
	if !status.Valid() {
		return Validationf("set status", "unknown status %q", status)
	}
	return t.updateTask("task.status", id, func(task *Task) (string, error) {
		task.Status = status
		return task.Title + " -> " + string(status), nil
	})
}

// ToggleTaskDone flips between Done and Todo. A task in progress becomes Done.
func (t *Tracker) ToggleTaskDone(id string) error {
	return t.updateTask("task.toggle", id, func(task *Task) (string, error) {
		if task.Status == StatusDone {
			task.Status = StatusTodo
		} else {
			task.Status = StatusDone
		}
		return task.Title + " -> " + string(task.Status), nil
	})
}

// MarkDone sets the task to Done regardless of its current status
func (t *Tracker) MarkDone(id string) error {
	return t.updateTask("task.done", id, func(task *Task) (string, error) {
		task.Status = StatusDone
		return task.Title + " -> Done", nil
	})
}

// DeleteTask removes a task
func (t *Tracker) DeleteTask(id string) error {
	return t.commit("task.delete", func(s *Store) (string, error) {
		for i, task := range s.Tasks {
			if task.ID == id {
				s.Tasks = append(s.Tasks[:i:i], s.Tasks[i+1:]...)
				return "deleted task " + task.Title, nil
			}
		}
		return "", NotFoundf("delete task", "task %s", id)
	})
}

// SetMotto replaces the free-text motto
func (t *Tracker) SetMotto(motto string) error {
	return t.commit("motto.set", func(s *Store) (string, error) {
		s.Motto = motto
		return "motto updated", nil
	})
}

// Replace swaps in an entirely new state, as an import does. The incoming
// store must satisfy every invariant; otherwise nothing changes.
func (t *Tracker) Replace(next Store) error {
	if err := Validate(next); err != nil {
		return Serializationf("replace", "%v", err)
	}
	return t.commit("store.replace", func(s *Store) (string, error) {
		*s = next.Clone()
		return formatReplaceSummary(len(next.Projects), len(next.Tasks)), nil
	})
}
