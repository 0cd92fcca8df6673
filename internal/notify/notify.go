// Package notify delivers fire-and-forget user notifications (focus timer
// completion, due reminders) through a pluggable capability.
package notify

import (
	"context"
	"fmt"

	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/logging"
)

// Permission is the outcome of a permission request
type Permission string

const (
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

// Capability is an external notification service. Callers check Available
// and RequestPermission before calling Notify.
type Capability interface {
	// Available reports whether the service is configured at all
	Available() bool
	// RequestPermission asks for (or re-checks) authorization to notify
	RequestPermission(ctx context.Context) Permission
	// Notify delivers message; the result is informational only
	Notify(ctx context.Context, message string) error
	// Kind names the implementation for logs and metrics
	Kind() string
}

// Open selects the capability described by cfg
func Open(cfg config.Notify) (Capability, error) {
	switch cfg.Driver {
	case "log", "":
		return Log{}, nil
	case "discord":
		return NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID)
	default:
		return nil, fmt.Errorf("unknown notify driver %s", cfg.Driver)
	}
}

// Authorized reports whether c is available and grants permission
func Authorized(ctx context.Context, c Capability) bool {
	return c != nil && c.Available() && c.RequestPermission(ctx) == Granted
}

// Log writes notifications to the process log. It is always available.
type Log struct{}

func (Log) Available() bool { return true }

func (Log) RequestPermission(ctx context.Context) Permission { return Granted }

func (Log) Kind() string { return "log" }

func (Log) Notify(ctx context.Context, message string) error {
	logging.Info("notify", "%s", message)
	return nil
}

// observed reports every delivery attempt of the wrapped capability
type observed struct {
	Capability
	observe func(kind string, err error)
}

// Observed wraps c so observe sees the result of each Notify call
func Observed(c Capability, observe func(kind string, err error)) Capability {
	return observed{Capability: c, observe: observe}
}

func (o observed) Notify(ctx context.Context, message string) error {
	err := o.Capability.Notify(ctx, message)
	o.observe(o.Kind(), err)
	return err
}
