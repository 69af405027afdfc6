package channel

import (
	"context"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
)

// EventKind names a hierarchy event.
type EventKind string

const (
	EventRootOpened       EventKind = "root_opened"
	EventRootImported     EventKind = "root_imported"
	EventCategoryImported EventKind = "category_imported"
	EventActorCreated     EventKind = "actor_created"
	EventActorImported    EventKind = "actor_imported"
	EventDailyCreated     EventKind = "daily_created"
	EventDailyImported    EventKind = "daily_imported"
	EventCacheHit         EventKind = "cache_hit"
	EventCacheMiss        EventKind = "cache_miss"
	EventStateExported    EventKind = "state_exported"
	EventStateImported    EventKind = "state_imported"
	EventDuplicateEntry   EventKind = "duplicate_entry"
)

// Event describes something the hierarchy did. Unset fields are zero. Err
// is set when an import failed; the event kind names what was attempted.
type Event struct {
	Kind     EventKind
	Category string
	ActorID  string
	Date     string
	Address  domain.ChannelAddress
	Duration time.Duration
	Err      error
}

// Observer receives hierarchy events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to every member.
type Observers []Observer

// Observe forwards ev to each observer in order.
func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

// LogObserver writes events to a logger.
type LogObserver struct {
	Logger logger.Logger
}

// NewLogObserver returns an observer logging through l, or the default
// logger when l is nil.
func NewLogObserver(l logger.Logger) *LogObserver {
	if l == nil {
		l = logger.Default()
	}
	return &LogObserver{Logger: l}
}

// Observe logs ev. Cache events go to debug.
func (o *LogObserver) Observe(ctx context.Context, ev Event) {
	args := []any{"event", string(ev.Kind)}
	if ev.Category != "" {
		args = append(args, "category", ev.Category)
	}
	if ev.ActorID != "" {
		args = append(args, "actor_id", ev.ActorID)
	}
	if ev.Date != "" {
		args = append(args, "date", ev.Date)
	}
	if !ev.Address.IsZero() {
		args = append(args, "address", ev.Address.String())
	}
	if ev.Duration > 0 {
		args = append(args, "elapsed", ev.Duration)
	}

	l := o.Logger.WithContext(ctx)
	if id := logger.OperationIDFromContext(ctx); id != "" {
		l = l.With("operation_id", id)
	}
	switch {
	case ev.Err != nil:
		l.Warn("hierarchy event failed", append(args, "error", ev.Err)...)
	case ev.Kind == EventDuplicateEntry:
		l.Warn("ignoring duplicate directory entry", args...)
	case ev.Kind == EventCacheHit || ev.Kind == EventCacheMiss:
		l.Debug("daily channel cache", args...)
	default:
		l.Info("hierarchy event", args...)
	}
}
