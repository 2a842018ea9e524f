// Package hooks defines the side-effect interfaces fired after content
// mutations. Implementations run fire-and-forget: a hook failure is logged
// and never surfaces to the client whose write triggered it.
package hooks

import (
	"context"
	"log/slog"
)

// CalendarSync mirrors fixture changes into an external calendar.
type CalendarSync interface {
	FixtureCreated(ctx context.Context, fixtureID, label string)
	FixtureUpdated(ctx context.Context, fixtureID, label string)
	FixtureDeleted(ctx context.Context, fixtureID, label string)
}

// Notifier announces content changes to subscribers (mailing list, socials).
type Notifier interface {
	ContentChanged(ctx context.Context, section, action, label string)
}

// LogHooks is the default implementation: it records every event to the
// structured log and does nothing else. Real integrations replace it at
// wiring time.
type LogHooks struct {
	Logger *slog.Logger
}

func (h LogHooks) FixtureCreated(_ context.Context, id, label string) {
	h.Logger.Info("calendar sync: fixture created", "fixture_id", id, "fixture", label)
}

func (h LogHooks) FixtureUpdated(_ context.Context, id, label string) {
	h.Logger.Info("calendar sync: fixture updated", "fixture_id", id, "fixture", label)
}

func (h LogHooks) FixtureDeleted(_ context.Context, id, label string) {
	h.Logger.Info("calendar sync: fixture deleted", "fixture_id", id, "fixture", label)
}

func (h LogHooks) ContentChanged(_ context.Context, section, action, label string) {
	h.Logger.Info("content changed", "section", section, "action", action, "item", label)
}

var (
	_ CalendarSync = LogHooks{}
	_ Notifier     = LogHooks{}
)
