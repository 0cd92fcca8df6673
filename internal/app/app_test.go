package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/techpm/internal/activity"
	"github.com/vthunder/techpm/internal/artifact"
	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/focus"
	"github.com/vthunder/techpm/internal/notify"
	"github.com/vthunder/techpm/internal/storage"
	"github.com/vthunder/techpm/internal/tracker"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StatePath = dir
	cfg.Storage.DSN = dir
	cfg.Artifacts.Root = dir + "/exports"
	cfg.Timer.DefaultMinutes = 1
	return cfg
}

func scrape(t *testing.T, a *App) string {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestOpen_SeedThenPersisted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, storage.SourceSeed, a.Source)
	assert.Len(t, a.Tracker.Snapshot().Projects, 7)

	_, err = a.Tracker.CreateProject("Persist me", tracker.StagePlanning, "")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	b, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, storage.SourcePersisted, b.Source)
	assert.Len(t, b.Tracker.Snapshot().Projects, 8)

	entries, err := b.Journal.Find(activity.Query{Type: activity.TypeMutation, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "project.create", entries[0].Op)
}

func TestOpen_JournalDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal = false
	a, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Journal)
	_, err = a.Tracker.CreateTask("No journal", "")
	require.NoError(t, err)
}

func TestOpen_BadNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Driver = "pigeon"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestMetricsFollowMutations(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Tracker.CreateTask("Counted", "")
	require.NoError(t, err)
	a.Flush()

	body := scrape(t, a)
	assert.Contains(t, body, `techpm_mutations_total{op="task.create"} 1`)
	assert.Contains(t, body, "techpm_saves_total 1")
	assert.Contains(t, body, `techpm_tasks{status="Todo"} 2`)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	a.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }

	info, err := a.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tech-pm-1740821400000.json", info.Key)

	// a second export in the same millisecond must not clobber the first
	_, err = a.Export(ctx)
	assert.True(t, errors.Is(err, artifact.ErrExists), "got %v", err)

	seeded := a.Tracker.Snapshot()
	require.NoError(t, a.Tracker.SetMotto("changed"))

	restored, err := a.ImportArtifact(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, seeded.Motto, restored.Motto)
	assert.Equal(t, seeded.Motto, a.Tracker.Snapshot().Motto)

	_, err = a.Import("inline", strings.NewReader(`{"projects": [`))
	assert.True(t, errors.Is(err, tracker.ErrSerialization), "got %v", err)
	assert.Equal(t, seeded.Motto, a.Tracker.Snapshot().Motto)

	exports, err := a.Journal.Find(activity.Query{Type: activity.TypeExport, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, exports, 1)
	imports, err := a.Journal.Find(activity.Query{Type: activity.TypeImport, Limit: 10})
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "inline", imports[0].Data["source"])
	assert.NotNil(t, imports[0].Data["error"])
	errs, err := a.Journal.Find(activity.Query{Type: activity.TypeError, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, errs, 1)
}

func TestImport_FromReader(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	data := `{"projects":[{"id":"p","name":"Only","stage":"Executing"}],"tasks":[],"motto":"m"}`
	s, err := a.Import("backup.json", bytes.NewBufferString(data))
	require.NoError(t, err)
	assert.Len(t, s.Projects, 1)
	assert.Empty(t, a.Tracker.Snapshot().Tasks)
}

func TestTimer_JournalsCompletion(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := notify.NewRecorder()
	a.Notifier = notify.Observed(rec, a.Metrics.NotificationResult)

	clock := focus.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	timer := a.NewTimer(clock)
	assert.Equal(t, 60, timer.State().Remaining)

	require.NoError(t, timer.Start())
	clock.Advance(60 * time.Second)

	assert.Equal(t, []string{focus.CompleteMessage}, rec.Messages())
	timers, err := a.Journal.Find(activity.Query{Type: activity.TypeTimer, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, timers, 1)
	assert.Contains(t, scrape(t, a), `techpm_notifications_total{kind="recorder",result="ok"} 1`)
}

func TestScheduleReminder(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := notify.NewRecorder()
	a.Notifier = rec
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := focus.NewFakeClock(now)
	reminders := a.NewReminders(clock)
	defer reminders.Stop()

	_, err = a.ScheduleReminder(ctx, reminders, "missing")
	assert.True(t, errors.Is(err, tracker.ErrNotFound), "got %v", err)

	id, err := a.Tracker.CreateTask("Call back", "")
	require.NoError(t, err)
	_, err = a.ScheduleReminder(ctx, reminders, id)
	assert.True(t, errors.Is(err, tracker.ErrValidation), "got %v", err)

	require.NoError(t, a.Tracker.UpdateTaskField(id, tracker.TaskFieldDueAt, "2025-03-01T10:00:00Z"))
	rem, err := a.ScheduleReminder(ctx, reminders, id)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	select {
	case <-rem.Fired():
	default:
		t.Fatal("reminder did not fire")
	}
	assert.Equal(t, []string{focus.DueMessage("Call back")}, rec.Messages())

	logged, err := a.Journal.Find(activity.Query{Type: activity.TypeReminder, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}
