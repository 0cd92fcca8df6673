package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/techpm/internal/activity"
	"github.com/vthunder/techpm/internal/app"
	"github.com/vthunder/techpm/internal/focus"
	"github.com/vthunder/techpm/internal/hierarchy"
	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/query"
	"github.com/vthunder/techpm/internal/tracker"
)

// toolset holds the long-lived state behind the MCP tools
type toolset struct {
	app       *app.App
	clock     focus.Clock
	timer     *focus.Timer
	reminders *focus.Reminders
}

func newToolset(a *app.App, clock focus.Clock) *toolset {
	return &toolset{
		app:       a,
		clock:     clock,
		timer:     a.NewTimer(clock),
		reminders: a.NewReminders(clock),
	}
}

func (t *toolset) register(s *server.MCPServer) {
	// Projects
	s.AddTool(mcp.NewTool("project_create",
		mcp.WithDescription("Create a project. With parent_id it becomes a sub-project of that root project (two levels only)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("stage", mcp.Description("Planning (default), Executing, Closing, Paused or Archived")),
		mcp.WithString("parent_id", mcp.Description("ID of a root project")),
	), t.projectCreate)
	s.AddTool(mcp.NewTool("project_update",
		mcp.WithDescription("Set one project field: name, stage, startAt, endAt (YYYY-MM-DD or empty), deliverables, parentId."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field name")),
		mcp.WithString("value", mcp.Description("New value (empty clears optional fields)")),
	), t.projectUpdate)
	s.AddTool(mcp.NewTool("project_delete",
		mcp.WithDescription("Delete a project with its sub-projects and their tasks. Without confirm=true only the deletion plan is returned when anything beyond the project itself would be removed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithBoolean("confirm", mcp.Description("Apply the deletion")),
	), t.projectDelete)
	s.AddTool(mcp.NewTool("project_tree",
		mcp.WithDescription("All projects as a two-level tree with progress percentages, plus overall counters and the motto."),
	), t.projectTree)
	s.AddTool(mcp.NewTool("progress",
		mcp.WithDescription("Completion percentage of a project. A root project includes its sub-projects' tasks."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
	), t.progress)
	s.AddTool(mcp.NewTool("stats",
		mcp.WithDescription("Total and done tasks, running projects and overall completion."),
	), t.stats)
	s.AddTool(mcp.NewTool("motto_set",
		mcp.WithDescription("Replace the motto shown above the stats."),
		mcp.WithString("motto", mcp.Required(), mcp.Description("New motto")),
	), t.mottoSet)

	// Tasks
	s.AddTool(mcp.NewTool("task_add",
		mcp.WithDescription("Add a Todo task. Without project_id it goes to the first root project."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("project_id", mcp.Description("Project ID")),
	), t.taskAdd)
	s.AddTool(mcp.NewTool("task_list",
		mcp.WithDescription("Filtered tasks, unfinished first, then by due date (no due date last)."),
		mcp.WithString("project_id", mcp.Description("Project ID; a root project includes its sub-projects")),
		mcp.WithString("status", mcp.Description("all (default), Todo, InProgress or Done")),
		mcp.WithString("tag", mcp.Description("Exact tag")),
		mcp.WithString("q", mcp.Description("Case-insensitive title substring")),
	), t.taskList)
	s.AddTool(mcp.NewTool("task_update",
		mcp.WithDescription("Set one task field: title, status, dueAt (RFC 3339 or YYYY-MM-DDTHH:MM, empty clears), tags (comma separated), projectId."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field name")),
		mcp.WithString("value", mcp.Description("New value")),
	), t.taskUpdate)
	s.AddTool(mcp.NewTool("task_status",
		mcp.WithDescription("Set a task's status."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Todo, InProgress or Done")),
	), t.taskStatus)
	s.AddTool(mcp.NewTool("task_toggle",
		mcp.WithDescription("Flip a task between Done and Todo (InProgress becomes Done)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
	), t.taskToggle)
	s.AddTool(mcp.NewTool("task_done",
		mcp.WithDescription("Mark a task Done."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
	), t.taskDone)
	s.AddTool(mcp.NewTool("task_delete",
		mcp.WithDescription("Delete a task."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
	), t.taskDelete)

	// Interchange
	s.AddTool(mcp.NewTool("export_snapshot",
		mcp.WithDescription("Write the whole store as a timestamped JSON artifact."),
	), t.exportSnapshot)
	s.AddTool(mcp.NewTool("import_snapshot",
		mcp.WithDescription("Replace ALL projects, tasks and the motto with a snapshot. Give either inline JSON or the key of an earlier export. Nothing changes when the snapshot is invalid."),
		mcp.WithString("json", mcp.Description("Snapshot document")),
		mcp.WithString("key", mcp.Description("Artifact key, e.g. tech-pm-1740821400000.json")),
	), t.importSnapshot)
	s.AddTool(mcp.NewTool("journal_recent",
		mcp.WithDescription("Most recent journal entries (mutations, exports, imports, reminders)."),
		mcp.WithNumber("n", mcp.Description("How many entries (default 20)")),
		mcp.WithString("type", mcp.Description("mutation, export, import, reminder, timer or error")),
		mcp.WithString("query", mcp.Description("Case-insensitive text to look for")),
	), t.journalRecent)

	// Focus
	s.AddTool(mcp.NewTool("timer_start",
		mcp.WithDescription("Start or resume the focus countdown."),
	), t.timerStart)
	s.AddTool(mcp.NewTool("timer_pause",
		mcp.WithDescription("Pause the focus countdown."),
	), t.timerPause)
	s.AddTool(mcp.NewTool("timer_reset",
		mcp.WithDescription("Stop the countdown and set it to seconds (default: the configured length)."),
		mcp.WithNumber("seconds", mcp.Description("Countdown length in seconds")),
	), t.timerReset)
	s.AddTool(mcp.NewTool("timer_preset",
		mcp.WithDescription("Stop the countdown and set it to a preset."),
		mcp.WithNumber("minutes", mcp.Required(), mcp.Description("25, 50 or 90")),
	), t.timerPreset)
	s.AddTool(mcp.NewTool("timer_status",
		mcp.WithDescription("Phase and remaining time of the focus countdown."),
	), t.timerStatus)
	s.AddTool(mcp.NewTool("reminder_schedule",
		mcp.WithDescription("Notify when a task falls due. Each call adds another reminder."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID (must have a future due date)")),
	), t.reminderSchedule)
}

// Argument helpers

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Views

type projectView struct {
	ID           string `json:"id"`
	ParentID     string `json:"parentId,omitempty"`
	Name         string `json:"name"`
	Stage        string `json:"stage"`
	StartAt      string `json:"startAt,omitempty"`
	EndAt        string `json:"endAt,omitempty"`
	Deliverables string `json:"deliverables,omitempty"`
}

type nodeView struct {
	projectView
	Progress int        `json:"progress"`
	Tasks    int        `json:"tasks"`
	Children []nodeView `json:"children,omitempty"`
}

type taskView struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	DueAt     string   `json:"dueAt,omitempty"`
	Overdue   bool     `json:"overdue"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
}

func viewProject(p tracker.Project) projectView {
	return projectView{
		ID:           p.ID,
		ParentID:     p.ParentID,
		Name:         p.Name,
		Stage:        string(p.Stage),
		StartAt:      p.StartAt,
		EndAt:        p.EndAt,
		Deliverables: p.Deliverables,
	}
}

func viewNode(n hierarchy.Node) nodeView {
	v := nodeView{projectView: viewProject(n.Project), Progress: n.Progress, Tasks: n.Tasks}
	for _, c := range n.Children {
		v.Children = append(v.Children, viewNode(c))
	}
	return v
}

func viewTask(t tracker.Task, now time.Time) taskView {
	v := taskView{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    string(t.Status),
		Overdue:   t.Overdue(now),
		Tags:      t.Tags,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.DueAt != nil {
		v.DueAt = t.DueAt.Format(time.RFC3339)
	}
	return v
}

// Project handlers

func (t *toolset) projectCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	stage := tracker.StagePlanning
	if raw := stringArg(args, "stage"); raw != "" {
		st, ok := tracker.ParseStage(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown stage %q", raw)), nil
		}
		stage = st
	}
	id, err := t.app.Tracker.CreateProject(stringArg(args, "name"), stage, stringArg(args, "parent_id"))
	if err != nil {
		return toolError(err)
	}
	p, _ := t.app.Tracker.Snapshot().FindProject(id)
	return jsonResult(viewProject(p))
}

func (t *toolset) projectUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id := stringArg(args, "id")
	if err := t.app.Tracker.UpdateProjectField(id, stringArg(args, "field"), stringArg(args, "value")); err != nil {
		return toolError(err)
	}
	p, _ := t.app.Tracker.Snapshot().FindProject(id)
	return jsonResult(viewProject(p))
}

func (t *toolset) projectDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id := stringArg(args, "id")
	plan, err := t.app.Tracker.PlanDelete(id)
	if err != nil {
		return toolError(err)
	}
	if plan.NeedsConfirmation && !boolArg(args, "confirm") {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Deleting %s would also remove %d sub-project(s) and %d task(s). Call again with confirm=true to proceed.",
			id, len(plan.ProjectIDs)-1, len(plan.TaskIDs))), nil
	}
	if err := t.app.Tracker.DeleteProject(id); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d project(s) and %d task(s)", len(plan.ProjectIDs), len(plan.TaskIDs))), nil
}

func (t *toolset) projectTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := t.app.Tracker.Snapshot()
	idx := hierarchy.Build(s)
	nodes := make([]nodeView, 0)
	for _, n := range idx.Tree() {
		nodes = append(nodes, viewNode(n))
	}
	return jsonResult(map[string]any{
		"motto":    s.Motto,
		"stats":    idx.Stats(),
		"projects": nodes,
	})
}

func (t *toolset) progress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(arguments(req), "project_id")
	idx := hierarchy.Build(t.app.Tracker.Snapshot())
	p, ok := idx.Project(id)
	if !ok {
		return toolError(tracker.NotFoundf("progress", "project %s", id))
	}
	return jsonResult(map[string]any{"id": p.ID, "name": p.Name, "progress": idx.Progress(p.ID)})
}

func (t *toolset) stats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(hierarchy.Build(t.app.Tracker.Snapshot()).Stats())
}

func (t *toolset) mottoSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.app.Tracker.SetMotto(stringArg(arguments(req), "motto")); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("Motto updated"), nil
}

// Task handlers

func (t *toolset) taskAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id, err := t.app.Tracker.CreateTask(stringArg(args, "title"), stringArg(args, "project_id"))
	if err != nil {
		return toolError(err)
	}
	task, _ := t.app.Tracker.Snapshot().FindTask(id)
	return jsonResult(viewTask(task, t.clock.Now()))
}

func (t *toolset) taskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	tasks, err := query.Tasks(t.app.Tracker.Snapshot(), query.Filter{
		ProjectID: stringArg(args, "project_id"),
		Status:    stringArg(args, "status"),
		Tag:       stringArg(args, "tag"),
		Text:      stringArg(args, "q"),
	})
	if err != nil {
		return toolError(err)
	}
	now := t.clock.Now()
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, viewTask(task, now))
	}
	return jsonResult(views)
}

// taskResult reports the task after a successful mutation
func (t *toolset) taskResult(id string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return toolError(err)
	}
	task, ok := t.app.Tracker.Snapshot().FindTask(id)
	if !ok {
		return mcp.NewToolResultText("Deleted task " + id), nil
	}
	return jsonResult(viewTask(task, t.clock.Now()))
}

func (t *toolset) taskUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id := stringArg(args, "id")
	return t.taskResult(id, t.app.Tracker.UpdateTaskField(id, stringArg(args, "field"), stringArg(args, "value")))
}

func (t *toolset) taskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	id := stringArg(args, "id")
	raw := stringArg(args, "status")
	st, ok := tracker.ParseStatus(raw)
	if !ok {
		st = tracker.Status(raw)
	}
	return t.taskResult(id, t.app.Tracker.SetTaskStatus(id, st))
}

func (t *toolset) taskToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(arguments(req), "id")
	return t.taskResult(id, t.app.Tracker.ToggleTaskDone(id))
}

func (t *toolset) taskDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(arguments(req), "id")
	return t.taskResult(id, t.app.Tracker.MarkDone(id))
}

func (t *toolset) taskDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(arguments(req), "id")
	return t.taskResult(id, t.app.Tracker.DeleteTask(id))
}

// Interchange handlers

func (t *toolset) exportSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := t.app.Export(ctx)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(info)
}

func (t *toolset) importSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	doc, key := stringArg(args, "json"), stringArg(args, "key")

	var (
		s   tracker.Store
		err error
	)
	switch {
	case doc != "" && key != "":
		return mcp.NewToolResultError("give either json or key, not both"), nil
	case doc != "":
		s, err = t.app.Import("inline", strings.NewReader(doc))
	case key != "":
		s, err = t.app.ImportArtifact(ctx, key)
	default:
		return mcp.NewToolResultError("json or key is required"), nil
	}
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d projects and %d tasks", len(s.Projects), len(s.Tasks))), nil
}

func (t *toolset) journalRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.app.Journal == nil {
		return mcp.NewToolResultError("journal is disabled"), nil
	}
	args := arguments(req)
	q := activity.Query{Limit: 20}
	if v, ok := numberArg(args, "n"); ok && v > 0 {
		q.Limit = int(v)
	}
	q.Type = activity.Type(stringArg(args, "type"))
	q.Text = stringArg(args, "query")
	entries, err := t.app.Journal.Find(q)
	if err != nil {
		return toolError(err)
	}
	if entries == nil {
		return jsonResult([]any{})
	}
	return jsonResult(entries)
}

// Focus handlers

func (t *toolset) timerStatusResult() (*mcp.CallToolResult, error) {
	st := t.timer.State()
	return jsonResult(map[string]any{
		"phase":            st.Phase,
		"remainingSeconds": st.Remaining,
		"display":          fmt.Sprintf("%02d:%02d", st.Remaining/60, st.Remaining%60),
	})
}

func (t *toolset) timerStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.timer.Start(); err != nil {
		return toolError(err)
	}
	return t.timerStatusResult()
}

func (t *toolset) timerPause(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.timer.Pause()
	return t.timerStatusResult()
}

func (t *toolset) timerReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seconds := t.app.Config.Timer.DefaultMinutes * 60
	if v, ok := numberArg(arguments(req), "seconds"); ok {
		seconds = int(v)
	}
	if err := t.timer.Reset(seconds); err != nil {
		return toolError(err)
	}
	return t.timerStatusResult()
}

func (t *toolset) timerPreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, ok := numberArg(arguments(req), "minutes")
	if !ok {
		return mcp.NewToolResultError("minutes is required"), nil
	}
	if err := t.timer.SelectPreset(focus.Preset(int(v))); err != nil {
		return toolError(err)
	}
	return t.timerStatusResult()
}

func (t *toolset) timerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.timerStatusResult()
}

func (t *toolset) reminderSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(arguments(req), "task_id")
	rem, err := t.app.ScheduleReminder(ctx, t.reminders, id)
	if err != nil {
		return toolError(err)
	}
	logging.Debug("mcp", "reminder %d for %s at %s", rem.ID, rem.TaskID, rem.At)
	return mcp.NewToolResultText(fmt.Sprintf("Reminder for %q scheduled at %s", rem.Title, rem.At.Format(time.RFC3339))), nil
}
