package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Locker reports whether an instance is exclusively held elsewhere.
type Locker interface {
	IsLocked(ctx context.Context, id int64) (bool, error)
}

type LockerFunc func(ctx context.Context, id int64) (bool, error)

func (f LockerFunc) IsLocked(ctx context.Context, id int64) (bool, error) {
	return f(ctx, id)
}

type Option func(*Ledger)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithLocker makes every mutation fail with content.ErrLocked while lk
// reports the instance as locked. Trees returned by Load are guarded by
// lk as well.
func WithLocker(lk Locker) Option {
	return func(l *Ledger) { l.locker = lk }
}

// WithLiveSteps sets the workflow steps whose versions become live.
func WithLiveSteps(steps ...int64) Option {
	return func(l *Ledger) {
		for _, s := range steps {
			l.liveSteps[s] = true
		}
	}
}

// WithRegisterer registers the ledger metrics with reg. Without it the
// metrics are collected but not registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Ledger) { l.reg = reg }
}

// WithClock sets the time source of version timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFetchConcurrency bounds the number of snapshots LoadContainer
// fetches at once.
func WithFetchConcurrency(n int) Option {
	return func(l *Ledger) { l.fetchLimit = n }
}
