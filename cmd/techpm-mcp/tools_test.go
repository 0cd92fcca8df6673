package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/techpm/internal/app"
	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/focus"
	"github.com/vthunder/techpm/internal/notify"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestToolset(t *testing.T) (*toolset, *focus.FakeClock, *notify.Recorder) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StatePath = dir
	cfg.Storage.Driver = "memory"
	cfg.Artifacts.Root = dir + "/exports"
	cfg.Timer.DefaultMinutes = 1

	a, err := app.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	rec := notify.NewRecorder()
	a.Notifier = rec
	clock := focus.NewFakeClock(start)
	ts := newToolset(a, clock)
	t.Cleanup(ts.reminders.Stop)
	return ts, clock, rec
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v), text)
	return v
}

func TestProjectAndTaskTools(t *testing.T) {
	ts, _, _ := newTestToolset(t)

	out, isErr := call(t, ts.projectCreate, map[string]any{"name": "Launch", "stage": "Executing"})
	require.False(t, isErr, out)
	root := decode[projectView](t, out)
	assert.Equal(t, "Executing", root.Stage)

	out, isErr = call(t, ts.projectCreate, map[string]any{"name": "Docs", "parent_id": root.ID})
	require.False(t, isErr, out)
	child := decode[projectView](t, out)
	assert.Equal(t, root.ID, child.ParentID)
	assert.Equal(t, "Planning", child.Stage)

	out, isErr = call(t, ts.taskAdd, map[string]any{"title": "Write guide", "project_id": child.ID})
	require.False(t, isErr, out)
	task := decode[taskView](t, out)
	assert.Equal(t, "Todo", task.Status)
	assert.Equal(t, []string{}, task.Tags)

	_, isErr = call(t, ts.taskAdd, map[string]any{"title": "Ship", "project_id": root.ID})
	require.False(t, isErr)

	out, isErr = call(t, ts.taskDone, map[string]any{"id": task.ID})
	require.False(t, isErr, out)
	assert.Equal(t, "Done", decode[taskView](t, out).Status)

	out, _ = call(t, ts.progress, map[string]any{"project_id": root.ID})
	assert.Equal(t, 50.0, decode[map[string]any](t, out)["progress"])
	out, _ = call(t, ts.progress, map[string]any{"project_id": child.ID})
	assert.Equal(t, 100.0, decode[map[string]any](t, out)["progress"])

	out, _ = call(t, ts.taskList, map[string]any{"project_id": root.ID})
	listed := decode[[]taskView](t, out)
	require.Len(t, listed, 2)
	assert.Equal(t, "Ship", listed[0].Title, "unfinished tasks first")

	out, _ = call(t, ts.taskList, map[string]any{"project_id": child.ID, "status": "Todo"})
	assert.Empty(t, decode[[]taskView](t, out))

	out, isErr = call(t, ts.taskList, map[string]any{"status": "Someday"})
	assert.True(t, isErr, out)
}

func TestProjectDelete_RequiresConfirm(t *testing.T) {
	ts, _, _ := newTestToolset(t)
	out, _ := call(t, ts.projectCreate, map[string]any{"name": "Root"})
	root := decode[projectView](t, out)
	_, _ = call(t, ts.taskAdd, map[string]any{"title": "Keep", "project_id": root.ID})

	out, isErr := call(t, ts.projectDelete, map[string]any{"id": root.ID})
	assert.False(t, isErr)
	assert.Contains(t, out, "confirm=true")
	_, ok := ts.app.Tracker.Snapshot().FindProject(root.ID)
	assert.True(t, ok, "plan must not delete")

	out, isErr = call(t, ts.projectDelete, map[string]any{"id": root.ID, "confirm": true})
	assert.False(t, isErr, out)
	_, ok = ts.app.Tracker.Snapshot().FindProject(root.ID)
	assert.False(t, ok)

	out, isErr = call(t, ts.projectDelete, map[string]any{"id": root.ID})
	assert.True(t, isErr, out)
}

func TestUpdateTools(t *testing.T) {
	ts, _, _ := newTestToolset(t)
	out, _ := call(t, ts.projectCreate, map[string]any{"name": "P"})
	p := decode[projectView](t, out)

	out, isErr := call(t, ts.projectUpdate, map[string]any{"id": p.ID, "field": "startAt", "value": "2025-03-01"})
	require.False(t, isErr, out)
	assert.Equal(t, "2025-03-01", decode[projectView](t, out).StartAt)

	_, isErr = call(t, ts.projectUpdate, map[string]any{"id": p.ID, "field": "startAt", "value": "March"})
	assert.True(t, isErr)

	out, _ = call(t, ts.taskAdd, map[string]any{"title": "T", "project_id": p.ID})
	task := decode[taskView](t, out)
	out, isErr = call(t, ts.taskUpdate, map[string]any{"id": task.ID, "field": "tags", "value": "a, b,,a"})
	require.False(t, isErr, out)
	assert.NotEmpty(t, decode[taskView](t, out).Tags)

	out, isErr = call(t, ts.taskStatus, map[string]any{"id": task.ID, "status": "InProgress"})
	require.False(t, isErr, out)
	out, _ = call(t, ts.taskToggle, map[string]any{"id": task.ID})
	assert.Equal(t, "Done", decode[taskView](t, out).Status)

	out, isErr = call(t, ts.taskDelete, map[string]any{"id": task.ID})
	assert.False(t, isErr)
	assert.Contains(t, out, "Deleted task")
	_, isErr = call(t, ts.taskDelete, map[string]any{"id": task.ID})
	assert.True(t, isErr)
}

func TestTreeStatsMotto(t *testing.T) {
	ts, _, _ := newTestToolset(t)

	out, isErr := call(t, ts.mottoSet, map[string]any{"motto": "Keep going"})
	require.False(t, isErr, out)

	out, _ = call(t, ts.projectTree, nil)
	tree := decode[map[string]any](t, out)
	assert.Equal(t, "Keep going", tree["motto"])
	assert.NotEmpty(t, tree["projects"])

	out, _ = call(t, ts.stats, nil)
	stats := decode[map[string]any](t, out)
	assert.Equal(t, 3.0, stats["totalTasks"])
}

func TestExportImportTools(t *testing.T) {
	ts, _, _ := newTestToolset(t)

	out, isErr := call(t, ts.exportSnapshot, nil)
	require.False(t, isErr, out)
	key := decode[map[string]any](t, out)["key"].(string)
	assert.True(t, strings.HasPrefix(key, "tech-pm-"))

	out, isErr = call(t, ts.importSnapshot, map[string]any{
		"json": `{"projects":[{"id":"p","name":"Only","stage":"Planning"}],"tasks":[],"motto":"fresh"}`,
	})
	require.False(t, isErr, out)
	assert.Equal(t, "fresh", ts.app.Tracker.Snapshot().Motto)

	_, isErr = call(t, ts.importSnapshot, map[string]any{"json": `{"projects":[],"tasks":[{"id":"t","projectId":"gone","title":"x","status":"Todo","tags":[],"createdAt":"2025-03-01T00:00:00Z"}]}`})
	assert.True(t, isErr)
	assert.Equal(t, "fresh", ts.app.Tracker.Snapshot().Motto)

	out, isErr = call(t, ts.importSnapshot, map[string]any{"key": key})
	require.False(t, isErr, out)
	assert.Len(t, ts.app.Tracker.Snapshot().Projects, 7)

	_, isErr = call(t, ts.importSnapshot, nil)
	assert.True(t, isErr)

	out, isErr = call(t, ts.journalRecent, map[string]any{"n": 2.0})
	require.False(t, isErr, out)
	assert.Len(t, decode[[]map[string]any](t, out), 2)

	out, isErr = call(t, ts.journalRecent, map[string]any{"type": "export"})
	require.False(t, isErr, out)
	exports := decode[[]map[string]any](t, out)
	require.NotEmpty(t, exports)
	for _, e := range exports {
		assert.Equal(t, "export", e["type"])
	}
}

func TestTimerTools(t *testing.T) {
	ts, clock, rec := newTestToolset(t)

	out, _ := call(t, ts.timerStatus, nil)
	status := decode[map[string]any](t, out)
	assert.Equal(t, "idle", status["phase"])
	assert.Equal(t, "01:00", status["display"])

	_, isErr := call(t, ts.timerPreset, map[string]any{"minutes": 30.0})
	assert.True(t, isErr)

	out, isErr = call(t, ts.timerReset, map[string]any{"seconds": 3.0})
	require.False(t, isErr, out)
	out, _ = call(t, ts.timerStart, nil)
	assert.Equal(t, "running", decode[map[string]any](t, out)["phase"])

	clock.Advance(time.Second)
	out, _ = call(t, ts.timerPause, nil)
	assert.Equal(t, 2.0, decode[map[string]any](t, out)["remainingSeconds"])

	_, _ = call(t, ts.timerStart, nil)
	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{focus.CompleteMessage}, rec.Messages())

	out, isErr = call(t, ts.timerStart, nil)
	assert.True(t, isErr, out)

	out, isErr = call(t, ts.timerPreset, map[string]any{"minutes": 50.0})
	require.False(t, isErr, out)
	assert.Equal(t, 3000.0, decode[map[string]any](t, out)["remainingSeconds"])
}

func TestReminderTool(t *testing.T) {
	ts, clock, rec := newTestToolset(t)
	out, _ := call(t, ts.taskAdd, map[string]any{"title": "Call back"})
	task := decode[taskView](t, out)

	_, isErr := call(t, ts.reminderSchedule, map[string]any{"task_id": task.ID})
	assert.True(t, isErr, "no due date")

	_, isErr = call(t, ts.taskUpdate, map[string]any{"id": task.ID, "field": "dueAt", "value": "2025-03-01T09:30:00Z"})
	require.False(t, isErr)
	out, isErr = call(t, ts.reminderSchedule, map[string]any{"task_id": task.ID})
	require.False(t, isErr, out)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, []string{focus.DueMessage("Call back")}, rec.Messages())

	rec.SetDenied(true)
	_, _ = call(t, ts.taskUpdate, map[string]any{"id": task.ID, "field": "dueAt", "value": "2025-03-02T09:30:00Z"})
	out, isErr = call(t, ts.reminderSchedule, map[string]any{"task_id": task.ID})
	assert.True(t, isErr, out)
}

func TestTaskViews_Overdue(t *testing.T) {
	ts, clock, _ := newTestToolset(t)
	out, _ := call(t, ts.taskAdd, map[string]any{"title": "File taxes"})
	task := decode[taskView](t, out)
	assert.False(t, task.Overdue, "no due date")

	out, isErr := call(t, ts.taskUpdate, map[string]any{"id": task.ID, "field": "dueAt", "value": "2025-03-01T10:00:00Z"})
	require.False(t, isErr, out)
	assert.False(t, decode[taskView](t, out).Overdue)

	clock.Advance(2 * time.Hour)
	out, _ = call(t, ts.taskList, map[string]any{"q": "taxes"})
	views := decode[[]taskView](t, out)
	require.Len(t, views, 1)
	assert.True(t, views[0].Overdue)

	out, isErr = call(t, ts.taskDone, map[string]any{"id": task.ID})
	require.False(t, isErr, out)
	assert.False(t, decode[taskView](t, out).Overdue, "done tasks are never overdue")
}
