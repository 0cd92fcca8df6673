package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/techpm/internal/tracker"
)

// saveTimeout bounds a single background save
const saveTimeout = 10 * time.Second

// Saver persists tracker changes on a background goroutine. Only the latest
// pending snapshot is kept, so a burst of mutations costs one write.
type Saver struct {
	adapter *Adapter

	mu      sync.Mutex
	latest  *tracker.Store
	stopped bool

	wake     chan struct{}
	flushReq chan chan struct{}
	stopChan chan struct{}
	done     chan struct{}
}

// NewSaver starts the background loop
func NewSaver(adapter *Adapter) *Saver {
	s := &Saver{
		adapter:  adapter,
		wake:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Observe is a tracker change hook; it never blocks on I/O
func (s *Saver) Observe(c tracker.Change) {
	s.Enqueue(c.Store)
}

// Enqueue replaces the pending snapshot with st
func (s *Saver) Enqueue(st tracker.Store) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.latest = &st
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until everything enqueued so far has been written
func (s *Saver) Flush() {
	reply := make(chan struct{})
	select {
	case s.flushReq <- reply:
		<-reply
	case <-s.done:
	}
}

// Stop writes the pending snapshot, if any, and ends the loop
func (s *Saver) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
	<-s.done
}

func (s *Saver) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.drain()
		case reply := <-s.flushReq:
			s.drain()
			close(reply)
		case <-s.stopChan:
			s.drain()
			return
		}
	}
}

func (s *Saver) drain() {
	for {
		s.mu.Lock()
		st := s.latest
		s.latest = nil
		s.mu.Unlock()
		if st == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		s.adapter.Save(ctx, *st)
		cancel()
	}
}
