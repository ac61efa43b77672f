package dnsupdater

import (
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies the point in the loop an Event was emitted from.
type EventKind int

const (
	EventStarted EventKind = iota
	EventResolving
	EventResolveFailed
	EventNoAddress
	EventUnchanged
	EventChanged
	EventUpdateFailed
	EventUpdated
	EventScopeCloseFailed
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResolving:
		return "resolving"
	case EventResolveFailed:
		return "resolve_failed"
	case EventNoAddress:
		return "no_address"
	case EventUnchanged:
		return "unchanged"
	case EventChanged:
		return "changed"
	case EventUpdateFailed:
		return "update_failed"
	case EventUpdated:
		return "updated"
	case EventScopeCloseFailed:
		return "scope_close_failed"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event describes something that happened during a cycle.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Kind     EventKind
	CycleID  string
	Addr     netip.Addr
	Previous netip.Addr
	Interval time.Duration
	Err      error
}

// Observer receives every Event the Service emits.
// OnCycleEvent runs on the loop goroutine and should return quickly.
type Observer interface {
	OnCycleEvent(Event)
}

// ObserverFunc adapts an ordinary function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnCycleEvent(e Event) { f(e) }

type observers []Observer

func (o observers) OnCycleEvent(e Event) {
	for _, obs := range o {
		obs.OnCycleEvent(e)
	}
}

// NewLogObserver returns an Observer that writes each Event to logger.
func NewLogObserver(logger *zap.Logger) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logObserver{logger: logger}
}

type logObserver struct {
	logger *zap.Logger
}

func (o *logObserver) OnCycleEvent(e Event) {
	fields := make([]zap.Field, 0, 4)
	if e.CycleID != "" {
		fields = append(fields, zap.String("cycle", e.CycleID))
	}

	switch e.Kind {
	case EventStarted:
		o.logger.Info("starting", append(fields, zap.Int64("check_interval_ms", e.Interval.Milliseconds()))...)
	case EventResolving:
		o.logger.Debug("fetching current IP", fields...)
	case EventResolveFailed:
		o.logger.Error("failed to resolve IP, skipping this cycle", append(fields, zap.Error(e.Err))...)
	case EventNoAddress:
		o.logger.Error("IP resolver failed to return an IP, skipping this cycle", fields...)
	case EventUnchanged:
		o.logger.Debug("current IP has not changed", append(fields, zap.Stringer("ip", e.Addr))...)
	case EventChanged:
		fields = append(fields, zap.Stringer("ip", e.Addr))
		if e.Previous.IsValid() {
			fields = append(fields, zap.Stringer("previous", e.Previous))
		}
		o.logger.Info("IP has changed, updating", fields...)
	case EventUpdateFailed:
		o.logger.Error("failed to update DNS record", append(fields, zap.Stringer("ip", e.Addr), zap.Error(e.Err))...)
	case EventUpdated:
		o.logger.Info("DNS record updated", append(fields, zap.Stringer("ip", e.Addr))...)
	case EventScopeCloseFailed:
		o.logger.Warn("error releasing cycle resources", append(fields, zap.Error(e.Err))...)
	case EventStopped:
		o.logger.Info("cancellation requested, stopping service", fields...)
	}
}
