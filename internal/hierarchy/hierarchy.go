// Package hierarchy derives the read model of the two-level project tree:
// children per project, scopes, per-project progress and overall counters.
// An Index is built from one snapshot and never changes afterwards.
package hierarchy

import (
	"math"

	"github.com/vthunder/techpm/internal/tracker"
)

// Counters are the aggregate figures shown above the project tree
type Counters struct {
	TotalTasks      int `json:"totalTasks"`
	DoneTasks       int `json:"doneTasks"`
	RunningProjects int `json:"runningProjects"`
	OverallPercent  int `json:"overallPercent"`
}

// Node is a project with its progress and direct children
type Node struct {
	Project  tracker.Project `json:"project"`
	Progress int             `json:"progress"`
	Tasks    int             `json:"tasks"`
	Children []Node          `json:"children,omitempty"`
}

type tally struct {
	total int
	done  int
}

// Index is the derived view over one store snapshot
type Index struct {
	store    tracker.Store
	byID     map[string]tracker.Project
	roots    []tracker.Project
	children map[string][]tracker.Project
	tallies  map[string]tally // per project, own tasks only
}

// Build indexes s in a single pass over projects and tasks
func Build(s tracker.Store) *Index {
	idx := &Index{
		store:    s,
		byID:     make(map[string]tracker.Project, len(s.Projects)),
		children: make(map[string][]tracker.Project),
		tallies:  make(map[string]tally, len(s.Projects)),
	}
	for _, p := range s.Projects {
		idx.byID[p.ID] = p
		if p.IsRoot() {
			idx.roots = append(idx.roots, p)
		} else {
			idx.children[p.ParentID] = append(idx.children[p.ParentID], p)
		}
	}
	for _, t := range s.Tasks {
		c := idx.tallies[t.ProjectID]
		c.total++
		if t.IsDone() {
			c.done++
		}
		idx.tallies[t.ProjectID] = c
	}
	return idx
}

// Roots returns the root projects in store order
func (idx *Index) Roots() []tracker.Project {
	out := make([]tracker.Project, len(idx.roots))
	copy(out, idx.roots)
	return out
}

// ChildrenOf returns the direct children of id in store order. The result is
// empty (not nil) for child projects, childless roots and unknown ids.
func (idx *Index) ChildrenOf(id string) []tracker.Project {
	kids := idx.children[id]
	out := make([]tracker.Project, len(kids))
	copy(out, kids)
	return out
}

// Project looks up a project by id
func (idx *Index) Project(id string) (tracker.Project, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Parent returns the parent of a child project
func (idx *Index) Parent(id string) (tracker.Project, bool) {
	p, ok := idx.byID[id]
	if !ok || p.IsRoot() {
		return tracker.Project{}, false
	}
	return idx.Project(p.ParentID)
}

// Scope returns id together with its direct children, or nil for an unknown id
func (idx *Index) Scope(id string) []string {
	if _, ok := idx.byID[id]; !ok {
		return nil
	}
	scope := []string{id}
	for _, c := range idx.children[id] {
		scope = append(scope, c.ID)
	}
	return scope
}

// InScope reports whether projectID falls within Scope(id)
func (idx *Index) InScope(id, projectID string) bool {
	if projectID == id {
		_, ok := idx.byID[id]
		return ok
	}
	p, ok := idx.byID[projectID]
	return ok && p.ParentID == id
}

func (idx *Index) scopeTally(id string) tally {
	var sum tally
	for _, pid := range idx.Scope(id) {
		c := idx.tallies[pid]
		sum.total += c.total
		sum.done += c.done
	}
	return sum
}

// Progress is the percentage of done tasks over the project and its direct
// children, 0 when there are no tasks.
func (idx *Index) Progress(id string) int {
	c := idx.scopeTally(id)
	return percent(c.done, c.total)
}

// Stats computes the aggregate counters
func (idx *Index) Stats() Counters {
	var c Counters
	for _, t := range idx.store.Tasks {
		c.TotalTasks++
		if t.IsDone() {
			c.DoneTasks++
		}
	}
	for _, p := range idx.store.Projects {
		if p.Stage == tracker.StageExecuting {
			c.RunningProjects++
		}
	}
	c.OverallPercent = percent(c.DoneTasks, c.TotalTasks)
	return c
}

// Tree returns every root with its children, each annotated with progress
func (idx *Index) Tree() []Node {
	nodes := make([]Node, 0, len(idx.roots))
	for _, r := range idx.roots {
		node := Node{Project: r, Progress: idx.Progress(r.ID), Tasks: idx.scopeTally(r.ID).total}
		for _, c := range idx.children[r.ID] {
			node.Children = append(node.Children, Node{
				Project:  c,
				Progress: idx.Progress(c.ID),
				Tasks:    idx.tallies[c.ID].total,
			})
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
