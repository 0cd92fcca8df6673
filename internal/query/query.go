// Package query filters and orders tasks for listing.
package query

import (
	"sort"
	"strings"

	"github.com/vthunder/techpm/internal/hierarchy"
	"github.com/vthunder/techpm/internal/tracker"
)

// StatusAll disables the status axis
const StatusAll = "all"

// Filter selects tasks. Every axis left empty places no constraint; set axes
// combine with AND.
type Filter struct {
	ProjectID string // root: itself and its children; child: itself only
	Status    string // "", "all" or a task status
	Tag       string // exact match against any tag
	Text      string // case-insensitive substring of the title
}

// Validate rejects a status that is neither empty, "all", nor a known status
func (f Filter) Validate() error {
	if _, err := f.status(); err != nil {
		return err
	}
	return nil
}

func (f Filter) status() (tracker.Status, error) {
	s := strings.TrimSpace(f.Status)
	if s == "" || strings.EqualFold(s, StatusAll) {
		return "", nil
	}
	st, ok := tracker.ParseStatus(s)
	if !ok {
		return "", tracker.Validationf("filter", "unknown status %q", f.Status)
	}
	return st, nil
}

// Tasks returns the tasks of s matching f: open tasks before done ones, each
// group by ascending due date with undated tasks last. Ties keep store order.
func Tasks(s tracker.Store, f Filter) ([]tracker.Task, error) {
	status, err := f.status()
	if err != nil {
		return nil, err
	}
	return run(hierarchy.Build(s), s.Tasks, f, status), nil
}

// TasksIndexed is Tasks for callers that already built an index over s
func TasksIndexed(idx *hierarchy.Index, s tracker.Store, f Filter) ([]tracker.Task, error) {
	status, err := f.status()
	if err != nil {
		return nil, err
	}
	return run(idx, s.Tasks, f, status), nil
}

func run(idx *hierarchy.Index, tasks []tracker.Task, f Filter, status tracker.Status) []tracker.Task {
	tag := strings.TrimSpace(f.Tag)
	text := ""
	if strings.TrimSpace(f.Text) != "" {
		text = strings.ToLower(f.Text)
	}
	projectID := strings.TrimSpace(f.ProjectID)

	out := []tracker.Task{}
	for _, t := range tasks {
		if projectID != "" && !idx.InScope(projectID, t.ProjectID) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		if tag != "" && !hasTag(t, tag) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(t.Title), text) {
			continue
		}
		out = append(out, t)
	}
	Sort(out)
	return out
}

func hasTag(t tracker.Task, tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// Sort orders tasks in place: done flag, then due date ascending with nil due
// last. The sort is stable.
func Sort(tasks []tracker.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return less(tasks[i], tasks[j])
	})
}

func less(a, b tracker.Task) bool {
	if a.IsDone() != b.IsDone() {
		return !a.IsDone()
	}
	switch {
	case a.DueAt == nil:
		return false
	case b.DueAt == nil:
		return true
	default:
		return a.DueAt.Before(*b.DueAt)
	}
}
