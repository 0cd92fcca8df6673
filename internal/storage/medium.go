// Package storage persists tracker snapshots in a key-value medium and
// restores them at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vthunder/techpm/internal/config"
)

// ErrKeyNotFound is returned by Get when nothing is stored under the key
var ErrKeyNotFound = errors.New("key not found")

// Medium is a minimal key-value store
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Close() error
	// Name identifies the driver in logs
	Name() string
}

// Open selects the medium described by cfg
func Open(ctx context.Context, cfg config.Storage) (Medium, error) {
	switch cfg.Driver {
	case "file", "":
		return NewFile(cfg.DSN)
	case "sqlite":
		return OpenSQL(ctx, DialectSQLite, cfg.DSN)
	case "sqlite3":
		return OpenSQL(ctx, DialectSQLite3, cfg.DSN)
	case "postgres":
		return OpenSQL(ctx, DialectPostgres, cfg.DSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// Memory keeps values in process memory. Nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory medium
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Close() error { return nil }
