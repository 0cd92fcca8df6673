package tracker

import (
	"regexp"
	"strings"
	"time"
)

// datePattern matches YYYY-MM-DD format
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dueLayouts are tried in order when parsing a due date. The minute-precision
// form is what a datetime-local input produces.
var dueLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// IsValidDate checks a date-granularity value (empty means unset)
func IsValidDate(s string) bool {
	if s == "" {
		return true
	}
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// ParseDue parses a due timestamp. Values without a zone are read in loc.
// The result is normalized to UTC with no monotonic reading.
func ParseDue(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return Normalize(t), true
		}
	}
	return time.Time{}, false
}

// Normalize converts t to UTC and strips the monotonic clock reading so
// values compare equal after a serialization round trip.
func Normalize(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// SplitTags turns a comma-separated list into tags, keeping order and duplicates
func SplitTags(s string) []string {
	tags := []string{}
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Validate checks the store-wide invariants: unique ids, known enums,
// two-level hierarchy and task references.
func Validate(s Store) error {
	const op = "validate"

	projects := make(map[string]Project, len(s.Projects))
	for _, p := range s.Projects {
		if p.ID == "" {
			return Validationf(op, "project %q has no id", p.Name)
		}
		if _, dup := projects[p.ID]; dup {
			return Validationf(op, "duplicate project id %s", p.ID)
		}
		if !p.Stage.Valid() {
			return Validationf(op, "project %s has unknown stage %q", p.ID, p.Stage)
		}
		if !IsValidDate(p.StartAt) || !IsValidDate(p.EndAt) {
			return Validationf(op, "project %s has a malformed date", p.ID)
		}
		projects[p.ID] = p
	}

	for _, p := range s.Projects {
		if p.IsRoot() {
			continue
		}
		parent, ok := projects[p.ParentID]
		if !ok {
			return Validationf(op, "project %s references missing parent %s", p.ID, p.ParentID)
		}
		if !parent.IsRoot() {
			return Validationf(op, "project %s is nested below child project %s", p.ID, parent.ID)
		}
	}

	seen := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.ID == "" {
			return Validationf(op, "task %q has no id", t.Title)
		}
		if seen[t.ID] {
			return Validationf(op, "duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
		if _, ok := projects[t.ProjectID]; !ok {
			return Validationf(op, "task %s references missing project %s", t.ID, t.ProjectID)
		}
		if !t.Status.Valid() {
			return Validationf(op, "task %s has unknown status %q", t.ID, t.Status)
		}
	}
	return nil
}
