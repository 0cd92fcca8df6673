// Package app wires configuration, storage, the tracker and its observers
// into one runtime shared by the CLI and the MCP server.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vthunder/techpm/internal/activity"
	"github.com/vthunder/techpm/internal/artifact"
	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/focus"
	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/metrics"
	"github.com/vthunder/techpm/internal/notify"
	"github.com/vthunder/techpm/internal/snapshot"
	"github.com/vthunder/techpm/internal/storage"
	"github.com/vthunder/techpm/internal/tracker"
)

// App is a running tracker with persistence and observers attached
type App struct {
	Config   config.Config
	Tracker  *tracker.Tracker
	Metrics  *metrics.Metrics
	Journal  *activity.Log // nil when the journal is disabled
	Notifier notify.Capability
	Source   storage.Source

	medium storage.Medium
	saver  *storage.Saver
	now    func() time.Time

	mu        sync.Mutex
	artifacts artifact.Store
	closed    bool
}

// Open loads the persisted store (or the seed dataset) and attaches the
// background saver, journal and metrics to every mutation.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	logging.SetDebug(cfg.Debug)

	medium, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := metrics.New()
	adapter := storage.NewAdapter(medium, cfg.Storage.Key)
	adapter.OnSave = m.SaveResult
	initial, source := adapter.Load(ctx)

	capability, err := notify.Open(cfg.Notify)
	if err != nil {
		medium.Close()
		return nil, fmt.Errorf("failed to open notifier: %w", err)
	}

	a := &App{
		Config:   cfg,
		Tracker:  tracker.New(initial),
		Metrics:  m,
		Notifier: notify.Observed(capability, m.NotificationResult),
		Source:   source,
		medium:   medium,
		saver:    storage.NewSaver(adapter),
		now:      time.Now,
	}
	m.SetStore(initial)

	a.Tracker.OnChange(a.saver.Observe)
	a.Tracker.OnChange(m.Observe)
	if cfg.Journal {
		a.Journal = activity.New(cfg.StatePath)
		a.Tracker.OnChange(a.Journal.Record)
	}

	logging.Debug("app", "opened %s store (%s), %d projects, %d tasks",
		medium.Name(), source, len(initial.Projects), len(initial.Tasks))
	return a, nil
}

// Artifacts opens the export store on first use
func (a *App) Artifacts(ctx context.Context) (artifact.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.artifacts == nil {
		s, err := artifact.Open(ctx, a.Config.Artifacts)
		if err != nil {
			return nil, err
		}
		a.artifacts = s
	}
	return a.artifacts, nil
}

// Export writes the current store as a timestamped artifact
func (a *App) Export(ctx context.Context) (artifact.Info, error) {
	sink, err := a.Artifacts(ctx)
	if err != nil {
		return artifact.Info{}, err
	}
	info, err := snapshot.Export(ctx, a.Tracker, sink, a.now())
	if err != nil {
		a.journalError("export failed", err)
		return artifact.Info{}, err
	}
	if a.Journal != nil {
		if err := a.Journal.LogExport(info.Key, info.Location, info.Size); err != nil {
			logging.Warn("app", "failed to journal export: %v", err)
		}
	}
	return info, nil
}

// Import replaces the store with the snapshot read from r. source names the
// input in the journal.
func (a *App) Import(source string, r io.Reader) (tracker.Store, error) {
	s, err := snapshot.Import(a.Tracker, r)
	a.journalImport(source, s, err)
	return s, err
}

// ImportArtifact imports a previously exported artifact by key
func (a *App) ImportArtifact(ctx context.Context, key string) (tracker.Store, error) {
	src, err := a.Artifacts(ctx)
	if err != nil {
		return tracker.Store{}, err
	}
	s, err := snapshot.ImportArtifact(ctx, a.Tracker, src, key)
	a.journalImport(key, s, err)
	return s, err
}

// NewTimer returns a focus timer set to the configured default length.
// Completed sessions are journaled.
func (a *App) NewTimer(clock focus.Clock) *focus.Timer {
	t := focus.NewTimer(clock, a.Notifier, a.Config.Timer.DefaultMinutes*60)
	t.OnComplete(func() {
		if a.Journal == nil {
			return
		}
		if err := a.Journal.LogTimer("focus session complete"); err != nil {
			logging.Warn("app", "failed to journal timer: %v", err)
		}
	})
	return t
}

// NewReminders returns a due-date scheduler delivering through the notifier
func (a *App) NewReminders(clock focus.Clock) *focus.Reminders {
	return focus.NewReminders(clock, a.Notifier)
}

// ScheduleReminder schedules a due reminder for the task with id
func (a *App) ScheduleReminder(ctx context.Context, r *focus.Reminders, id string) (*focus.Reminder, error) {
	task, ok := a.Tracker.Snapshot().FindTask(id)
	if !ok {
		return nil, tracker.NotFoundf("reminder.schedule", "task %s", id)
	}
	rem, err := r.Schedule(ctx, task)
	if err != nil {
		return nil, err
	}
	if a.Journal != nil {
		if err := a.Journal.LogReminder(task.ID, task.Title, rem.At); err != nil {
			logging.Warn("app", "failed to journal reminder: %v", err)
		}
	}
	return rem, nil
}

// Flush waits until every committed mutation has been handed to the medium
func (a *App) Flush() {
	a.saver.Flush()
}

// Close writes any pending snapshot and releases the medium
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.saver.Stop()
	return a.medium.Close()
}

func (a *App) journalImport(source string, s tracker.Store, err error) {
	if a.Journal == nil {
		return
	}
	if jerr := a.Journal.LogImport(source, len(s.Projects), len(s.Tasks), err); jerr != nil {
		logging.Warn("app", "failed to journal import: %v", jerr)
	}
}

func (a *App) journalError(summary string, err error) {
	if a.Journal == nil {
		return
	}
	if jerr := a.Journal.LogError(summary, err, nil); jerr != nil {
		logging.Warn("app", "failed to journal error: %v", jerr)
	}
}
