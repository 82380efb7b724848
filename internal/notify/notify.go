// Package notify abstracts the platform notification capability behind a
// probe-able interface. The client app conditionally imported its push
// module depending on the runtime environment; here the capability is an
// explicit interface with a Supported() probe, and the implementation is
// selected once at startup.
package notify

import (
	"context"
	"log/slog"
)

// Event is a user-facing notification request.
type Event struct {
	Kind  string // e.g. "repo_subscribed", "package_subscribed"
	Title string
	Body  string
}

// Provider delivers notifications when the environment supports them.
// Callers must check Supported() before relying on delivery; Notify on an
// unsupported provider is a no-op, never an error.
type Provider interface {
	Supported() bool
	Notify(ctx context.Context, ev Event)
}

// Disabled is the Provider for environments without notification support.
type Disabled struct{}

func (Disabled) Supported() bool { return false }

func (Disabled) Notify(context.Context, Event) {}

// LogProvider writes notifications to the structured log. It stands in for
// a real push backend during development and keeps the subscribe paths
// exercising the full capability flow.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Supported() bool { return true }

func (p *LogProvider) Notify(_ context.Context, ev Event) {
	p.logger.Info("notification",
		slog.String("kind", ev.Kind),
		slog.String("title", ev.Title),
		slog.String("body", ev.Body),
	)
}
