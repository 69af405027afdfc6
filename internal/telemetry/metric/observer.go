package metric

import (
	"context"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/channel"
)

// Observer records hierarchy events in a Registry.
type Observer struct {
	r *Registry
}

var _ channel.Observer = (*Observer)(nil)

// NewObserver returns an observer feeding r, or the global registry when r
// is nil.
func NewObserver(r *Registry) *Observer {
	if r == nil {
		r = Global()
	}
	return &Observer{r: r}
}

// Observe implements channel.Observer. Failed imports are counted apart
// and kept out of the event and latency series.
func (o *Observer) Observe(_ context.Context, ev channel.Event) {
	level := importLevel(ev.Kind)
	if ev.Err != nil {
		if level != "" {
			o.r.IncImportFailure(level)
		}
		return
	}

	o.r.RecordEvent(string(ev.Kind), ev.Category)
	switch {
	case ev.Kind == channel.EventCacheHit:
		o.r.IncCacheHit()
	case ev.Kind == channel.EventCacheMiss:
		o.r.IncCacheMiss()
	case level != "":
		o.r.ObserveImport(level, ev.Duration.Seconds())
	}
}

func importLevel(kind channel.EventKind) string {
	switch kind {
	case channel.EventDailyImported:
		return "daily"
	case channel.EventActorImported:
		return "actor"
	case channel.EventCategoryImported:
		return "category"
	case channel.EventRootImported:
		return "root"
	}
	return ""
}
