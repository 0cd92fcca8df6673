package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/snapshot"
	"github.com/vthunder/techpm/internal/tracker"
)

// Source says where a loaded store came from
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceSeed      Source = "seed"
)

// Adapter reads and writes the tracker snapshot under one key of a medium
type Adapter struct {
	medium Medium
	key    string
	now    func() time.Time
	// OnSave, when set, sees the result of every save attempt
	OnSave func(err error)
}

// NewAdapter binds a medium and key
func NewAdapter(medium Medium, key string) *Adapter {
	return &Adapter{medium: medium, key: key, now: time.Now}
}

// Load returns the persisted store. A missing or unreadable snapshot is
// logged and replaced by the seed dataset so startup always succeeds.
func (a *Adapter) Load(ctx context.Context) (tracker.Store, Source) {
	data, err := a.medium.Get(ctx, a.key)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		logging.Info("storage", "no snapshot under %s, starting from seed data", a.key)
		return tracker.Seed(a.now()), SourceSeed
	case err != nil:
		logging.Warn("storage", "failed to read snapshot from %s: %v", a.medium.Name(), err)
		return tracker.Seed(a.now()), SourceSeed
	}

	s, err := snapshot.Decode(data)
	if err != nil {
		logging.Warn("storage", "persisted snapshot is unreadable, starting from seed data: %v", err)
		return tracker.Seed(a.now()), SourceSeed
	}
	logging.Debug("storage", "loaded %d projects, %d tasks from %s", len(s.Projects), len(s.Tasks), a.medium.Name())
	return s, SourcePersisted
}

// Save writes s. Failures are logged and reported to OnSave only; the
// in-memory store stays authoritative.
func (a *Adapter) Save(ctx context.Context, s tracker.Store) {
	err := a.save(ctx, s)
	if err != nil {
		logging.Warn("storage", "save failed: %v", err)
	}
	if a.OnSave != nil {
		a.OnSave(err)
	}
}

func (a *Adapter) save(ctx context.Context, s tracker.Store) error {
	data, err := snapshot.Encode(s)
	if err != nil {
		return err
	}
	return a.medium.Put(ctx, a.key, data)
}
