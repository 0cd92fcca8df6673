package tracker

import (
	"fmt"
	"strings"
	"time"
)

// Editable task fields
const (
	TaskFieldTitle     = "title"
	TaskFieldStatus    = "status"
	TaskFieldDueAt     = "dueAt"
	TaskFieldTags      = "tags"
	TaskFieldProjectID = "projectId"
)

// Editable project fields
const (
	ProjectFieldName         = "name"
	ProjectFieldStage        = "stage"
	ProjectFieldStartAt      = "startAt"
	ProjectFieldEndAt        = "endAt"
	ProjectFieldDeliverables = "deliverables"
	ProjectFieldParentID     = "parentId"
)

// UpdateTaskField sets a single task field from its text form. An empty
// dueAt clears the due date; tags are comma-separated.
func (t *Tracker) UpdateTaskField(id, field, value string) error {
	const op = "update task"

	switch field {
	case "id", "createdAt":
		return Validationf(op, "field %s is immutable", field)
	case TaskFieldTitle, TaskFieldStatus, TaskFieldDueAt, TaskFieldTags, TaskFieldProjectID:
	default:
		return Validationf(op, "unknown task field %q", field)
	}

	return t.commit("task.update", func(s *Store) (string, error) {
		idx := -1
		for i := range s.Tasks {
			if s.Tasks[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return "", NotFoundf(op, "task %s", id)
		}
		task := &s.Tasks[idx]

		switch field {
		case TaskFieldTitle:
			title := strings.TrimSpace(value)
			if title == "" {
				return "", Validationf(op, "task title is required")
			}
			task.Title = title
		case TaskFieldStatus:
			status, ok := ParseStatus(value)
			if !ok {
				return "", Validationf(op, "unknown status %q", value)
			}
			task.Status = status
		case TaskFieldDueAt:
			if strings.TrimSpace(value) == "" {
				task.DueAt = nil
				break
			}
			due, ok := ParseDue(value, time.Local)
			if !ok {
				return "", Validationf(op, "cannot parse due date %q", value)
			}
			task.DueAt = &due
		case TaskFieldTags:
			task.Tags = SplitTags(value)
		case TaskFieldProjectID:
			if _, ok := s.FindProject(value); !ok {
				return "", NotFoundf(op, "project %s", value)
			}
			task.ProjectID = value
		}
		return fmt.Sprintf("%s.%s updated", task.Title, field), nil
	})
}

// UpdateProjectField sets a single project field from its text form.
// Re-parenting keeps the hierarchy at two levels.
func (t *Tracker) UpdateProjectField(id, field, value string) error {
	const op = "update project"

	switch field {
	case "id":
		return Validationf(op, "field id is immutable")
	case ProjectFieldName, ProjectFieldStage, ProjectFieldStartAt, ProjectFieldEndAt,
		ProjectFieldDeliverables, ProjectFieldParentID:
	default:
		return Validationf(op, "unknown project field %q", field)
	}

	return t.commit("project.update", func(s *Store) (string, error) {
		idx := -1
		for i := range s.Projects {
			if s.Projects[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return "", NotFoundf(op, "project %s", id)
		}
		p := &s.Projects[idx]

		switch field {
		case ProjectFieldName:
			name := strings.TrimSpace(value)
			if name == "" {
				return "", Validationf(op, "project name is required")
			}
			p.Name = name
		case ProjectFieldStage:
			stage, ok := ParseStage(value)
			if !ok {
				return "", Validationf(op, "unknown stage %q", value)
			}
			p.Stage = stage
		case ProjectFieldStartAt, ProjectFieldEndAt:
			date := strings.TrimSpace(value)
			if !IsValidDate(date) {
				return "", Validationf(op, "invalid date %q: want YYYY-MM-DD", value)
			}
			if field == ProjectFieldStartAt {
				p.StartAt = date
			} else {
				p.EndAt = date
			}
		case ProjectFieldDeliverables:
			p.Deliverables = value
		case ProjectFieldParentID:
			if err := checkReparent(*s, *p, value); err != nil {
				return "", err
			}
			p.ParentID = value
		}
		return fmt.Sprintf("%s.%s updated", p.Name, field), nil
	})
}

func checkReparent(s Store, p Project, parentID string) error {
	const op = "update project"
	if parentID == "" {
		return nil
	}
	if parentID == p.ID {
		return Validationf(op, "project cannot be its own parent")
	}
	parent, ok := s.FindProject(parentID)
	if !ok {
		return NotFoundf(op, "parent project %s", parentID)
	}
	if !parent.IsRoot() {
		return Validationf(op, "parent %q is itself a sub-project", parent.Name)
	}
	for _, other := range s.Projects {
		if other.ParentID == p.ID {
			return Validationf(op, "project %q has sub-projects and must stay a root", p.Name)
		}
	}
	return nil
}

func formatDeleteSummary(name string, children, tasks int) string {
	return fmt.Sprintf("deleted project %s (%d sub-projects, %d tasks)", name, children, tasks)
}

func formatReplaceSummary(projects, tasks int) string {
	return fmt.Sprintf("replaced store (%d projects, %d tasks)", projects, tasks)
}
