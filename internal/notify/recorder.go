package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrRecorderFailure is returned by a Recorder configured to fail
var ErrRecorderFailure = errors.New("recorder configured to fail")

// Recorder captures notifications in memory instead of delivering them.
// Availability, permission and failure are configurable for tests and
// dry runs.
type Recorder struct {
	mu          sync.Mutex
	unavailable bool
	denied      bool
	fail        bool
	requests    int
	messages    []string
	notified    chan string
}

// NewRecorder returns an available recorder that grants permission
func NewRecorder() *Recorder {
	return &Recorder{notified: make(chan string, 64)}
}

// SetAvailable toggles Available
func (r *Recorder) SetAvailable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unavailable = !ok
}

// SetDenied makes RequestPermission answer Denied
func (r *Recorder) SetDenied(denied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = denied
}

// SetFail makes Notify return ErrRecorderFailure after recording
func (r *Recorder) SetFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *Recorder) Kind() string { return "recorder" }

func (r *Recorder) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unavailable
}

func (r *Recorder) RequestPermission(ctx context.Context) Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	if r.denied {
		return Denied
	}
	return Granted
}

func (r *Recorder) Notify(ctx context.Context, message string) error {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	fail := r.fail
	r.mu.Unlock()

	select {
	case r.notified <- message:
	default:
	}
	if fail {
		return ErrRecorderFailure
	}
	return nil
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// PermissionRequests counts RequestPermission calls
func (r *Recorder) PermissionRequests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// Notified delivers each recorded message as it arrives (buffered; messages
// beyond the buffer are only visible through Messages)
func (r *Recorder) Notified() <-chan string {
	return r.notified
}
