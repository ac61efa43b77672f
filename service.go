package dnsupdater

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MinCheckIntervalMs is the shortest accepted wait between cycles.
const MinCheckIntervalMs = 1000

var (
	ErrNoOptions        = errors.New("no options provided")
	ErrIntervalTooShort = fmt.Errorf("CheckIntervalMs must be >= %d", MinCheckIntervalMs)
)

// Options configures the reconciliation loop.
// It is read from the "Host" section of the configuration file.
type Options struct {
	CheckIntervalMs int `mapstructure:"checkintervalms"`
}

// Validate reports whether o can be used to start a Service.
func (o *Options) Validate() error {
	if o == nil {
		return ErrNoOptions
	}
	if o.CheckIntervalMs < MinCheckIntervalMs {
		return fmt.Errorf("%w: got %d", ErrIntervalTooShort, o.CheckIntervalMs)
	}
	return nil
}

// Interval returns CheckIntervalMs as a time.Duration.
func (o *Options) Interval() time.Duration {
	return time.Duration(o.CheckIntervalMs) * time.Millisecond
}

// Outcome is the result of a single cycle.
type Outcome int

const (
	OutcomeResolveFailed Outcome = iota
	OutcomeNoAddress
	OutcomeUnchanged
	OutcomeChanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolveFailed:
		return "resolve failed"
	case OutcomeNoAddress:
		return "no address"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeChanged:
		return "changed"
	}
	return "unknown"
}

// ServiceOption configures a Service. See WithLogger, WithObserver and WithClock.
type ServiceOption func(*Service) error

// WithLogger sends cycle events to logger.
// It may be combined with WithObserver.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		s.observers = append(s.observers, NewLogObserver(logger))
		return nil
	}
}

// WithObserver registers an additional Observer for cycle events.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) error {
		if o == nil {
			return errors.New("observer cannot be nil")
		}
		s.observers = append(s.observers, o)
		return nil
	}
}

// WithClock replaces the clock used to time the wait between cycles.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		s.clock = c
		return nil
	}
}

// Service is the reconciliation loop.
// It keeps a single DNS record pointed at the address reported by the Resolver of each cycle.
//
// A Service is not safe for concurrent use; Run and RunCycle must be called from one goroutine.
type Service struct {
	interval  time.Duration
	scopes    ScopeFunc
	clock     clock.Clock
	observers observers

	lastKnown netip.Addr
}

// New validates opts and returns a Service which has not started yet.
//
// An error from New is a configuration error; the loop should not be started.
func New(opts *Options, scopes ScopeFunc, options ...ServiceOption) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("dnsupdater.New: %w", err)
	}
	if scopes == nil {
		return nil, errors.New("dnsupdater.New: scope function cannot be nil")
	}
	s := &Service{
		interval: opts.Interval(),
		scopes:   scopes,
		clock:    clock.NewClock(),
	}
	for i, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("dnsupdater.New: option %d returned an error: %w", i, err)
		}
	}
	return s, nil
}

// LastKnownIP returns the address the Service believes is published.
// The zero Addr means nothing has been published since the Service was created.
func (s *Service) LastKnownIP() netip.Addr {
	return s.lastKnown
}

// Run executes cycles until ctx is cancelled, waiting the check interval between each one.
// Failures inside a cycle are reported to observers and never stop the loop.
// Run returns nil once ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.emit(Event{Kind: EventStarted, Interval: s.interval})
	for ctx.Err() == nil {
		s.RunCycle(ctx)
		if !s.wait(ctx) {
			break
		}
	}
	s.emit(Event{Kind: EventStopped})
	return nil
}

func (s *Service) wait(ctx context.Context) bool {
	t := s.clock.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}

// RunCycle performs one resolve, compare and update pass.
//
// Capability calls are not interrupted when ctx is cancelled;
// cancellation only takes effect between cycles.
func (s *Service) RunCycle(ctx context.Context) Outcome {
	ctx = context.WithoutCancel(ctx)
	id := uuid.NewString()

	s.emit(Event{Kind: EventResolving, CycleID: id})
	scope, err := s.openScope()
	if err != nil {
		s.emit(Event{Kind: EventResolveFailed, CycleID: id, Err: err})
		return OutcomeResolveFailed
	}
	defer func() {
		if err := closeScope(scope); err != nil {
			s.emit(Event{Kind: EventScopeCloseFailed, CycleID: id, Err: err})
		}
	}()

	addr, err := resolve(ctx, scope)
	if err != nil {
		s.emit(Event{Kind: EventResolveFailed, CycleID: id, Err: err})
		return OutcomeResolveFailed
	}
	if !addr.IsValid() {
		s.emit(Event{Kind: EventNoAddress, CycleID: id})
		return OutcomeNoAddress
	}
	if addr == s.lastKnown {
		s.emit(Event{Kind: EventUnchanged, CycleID: id, Addr: addr})
		return OutcomeUnchanged
	}

	// The new address is recorded before the update is attempted and is kept even if the update fails.
	// A failed update is therefore not retried until the address changes again.
	previous := s.lastKnown
	s.lastKnown = addr
	s.emit(Event{Kind: EventChanged, CycleID: id, Addr: addr, Previous: previous})

	if err := update(ctx, scope, addr); err != nil {
		s.emit(Event{Kind: EventUpdateFailed, CycleID: id, Addr: addr, Err: err})
	} else {
		s.emit(Event{Kind: EventUpdated, CycleID: id, Addr: addr})
	}
	return OutcomeChanged
}

func (s *Service) openScope() (scope Scope, err error) {
	defer recoverTo(&err)
	scope = s.scopes()
	if scope == nil {
		return nil, errors.New("error acquiring cycle scope: scope function returned nil")
	}
	return scope, nil
}

func closeScope(scope Scope) (err error) {
	defer recoverTo(&err)
	return scope.Close()
}

func resolve(ctx context.Context, scope Scope) (addr netip.Addr, err error) {
	defer recoverTo(&err)
	r, err := scope.Resolver()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error acquiring resolver: %w", err)
	}
	addr, err = r.Resolve(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

func update(ctx context.Context, scope Scope, addr netip.Addr) (err error) {
	defer recoverTo(&err)
	u, err := scope.Updater()
	if err != nil {
		return fmt.Errorf("error acquiring updater: %w", err)
	}
	return u.UpdateDNSRecord(ctx, addr)
}

func recoverTo(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func (s *Service) emit(e Event) {
	s.observers.OnCycleEvent(e)
}
