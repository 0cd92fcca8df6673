package focus

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/notify"
	"github.com/vthunder/techpm/internal/tracker"
)

// DueMessage formats the notification sent for a due task
func DueMessage(title string) string {
	return "Due: " + title
}

// Reminder is one scheduled due-date notification
type Reminder struct {
	ID     uint64
	TaskID string
	Title  string
	At     time.Time

	fired chan struct{}
}

// Fired is closed once the reminder has been delivered
func (r *Reminder) Fired() <-chan struct{} {
	return r.fired
}

// Reminders schedules due-date notifications. Every Schedule call adds an
// independent reminder; nothing is deduplicated, and removing a task does not
// cancel reminders already scheduled for it.
type Reminders struct {
	clock    Clock
	notifier notify.Capability

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]func()
	stopped bool
}

// NewReminders creates a scheduler delivering through notifier
func NewReminders(clock Clock, notifier notify.Capability) *Reminders {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reminders{clock: clock, notifier: notifier, pending: make(map[uint64]func())}
}

// Schedule arranges for DueMessage(task.Title) to be sent at task.DueAt.
// It fails without side effects when the task has no due date, the
// notifier is unavailable or denies permission, or the due date has passed.
func (r *Reminders) Schedule(ctx context.Context, task tracker.Task) (*Reminder, error) {
	const op = "reminder.schedule"

	if task.DueAt == nil {
		return nil, tracker.Validationf(op, "task %s has no due date", task.ID)
	}
	if r.notifier == nil || !r.notifier.Available() {
		return nil, tracker.Capabilityf(op, "notifications are not supported")
	}
	if r.notifier.RequestPermission(ctx) != notify.Granted {
		return nil, tracker.Capabilityf(op, "notification permission denied")
	}
	delay := task.DueAt.Sub(r.clock.Now())
	if delay <= 0 {
		return nil, tracker.Validationf(op, "task %s is already past due", task.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, tracker.Capabilityf(op, "reminders are shut down")
	}
	r.seq++
	rem := &Reminder{
		ID:     r.seq,
		TaskID: task.ID,
		Title:  task.Title,
		At:     *task.DueAt,
		fired:  make(chan struct{}),
	}
	r.pending[rem.ID] = r.clock.AfterFunc(delay, func() { r.deliver(rem) })
	logging.Debug("focus", "reminder %d for task %s in %s", rem.ID, task.ID, delay)
	return rem, nil
}

func (r *Reminders) deliver(rem *Reminder) {
	r.mu.Lock()
	if _, ok := r.pending[rem.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.pending, rem.ID)
	r.mu.Unlock()

	if err := r.notifier.Notify(context.Background(), DueMessage(rem.Title)); err != nil {
		logging.Warn("focus", "reminder for task %s failed: %v", rem.TaskID, err)
	}
	close(rem.fired)
}

// Pending counts reminders that have not fired yet
func (r *Reminders) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels every pending reminder and rejects new ones. Used at shutdown.
func (r *Reminders) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.pending {
		cancel()
		delete(r.pending, id)
	}
	r.stopped = true
}
