package dnsupdater

import (
	"context"
	"errors"
	"io"
	"net/netip"
)

// Resolver looks up the current public IP address.
//
// A zero netip.Addr with a nil error means the lookup worked but produced no address.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// Updater publishes addr to the managed DNS record.
type Updater interface {
	UpdateDNSRecord(ctx context.Context, addr netip.Addr) error
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// UpdaterFunc adapts an ordinary function to an Updater.
type UpdaterFunc func(context.Context, netip.Addr) error

func (f UpdaterFunc) UpdateDNSRecord(ctx context.Context, addr netip.Addr) error { return f(ctx, addr) }

// Scope hands out the capabilities used by a single cycle.
// The Service asks for a new Scope at the start of every cycle and closes it when the cycle ends,
// so implementations may hold resources that should not outlive one cycle.
type Scope interface {
	Resolver() (Resolver, error)
	Updater() (Updater, error)
	Close() error
}

// ScopeFunc returns a fresh Scope.
type ScopeFunc func() Scope

// NewScopeFunc builds a ScopeFunc from constructors for each capability.
// The updater constructor only runs in cycles where the address changed.
// Capabilities that implement io.Closer are closed along with the scope.
func NewScopeFunc(newResolver func() (Resolver, error), newUpdater func() (Updater, error)) ScopeFunc {
	return func() Scope {
		return &funcScope{newResolver: newResolver, newUpdater: newUpdater}
	}
}

// StaticScope returns a ScopeFunc that hands out the same resolver and updater every cycle.
func StaticScope(r Resolver, u Updater) ScopeFunc {
	return NewScopeFunc(
		func() (Resolver, error) { return r, nil },
		func() (Updater, error) { return u, nil },
	)
}

type funcScope struct {
	newResolver func() (Resolver, error)
	newUpdater  func() (Updater, error)
	closers     []io.Closer
}

func (s *funcScope) Resolver() (Resolver, error) {
	if s.newResolver == nil {
		return nil, errors.New("no resolver was registered")
	}
	r, err := s.newResolver()
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("resolver constructor returned nil")
	}
	s.track(r)
	return r, nil
}

func (s *funcScope) Updater() (Updater, error) {
	if s.newUpdater == nil {
		return nil, errors.New("no updater was registered")
	}
	u, err := s.newUpdater()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("updater constructor returned nil")
	}
	s.track(u)
	return u, nil
}

func (s *funcScope) track(v any) {
	if c, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

func (s *funcScope) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
