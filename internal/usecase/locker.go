package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/iho/kasa/internal/domain"
)

// LocalLocker is an in-process PeriodLocker for single-node setups.
type LocalLocker struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

// NewLocalLocker creates a new LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locked: make(map[string]struct{})}
}

// Acquire implements PeriodLocker. The ttl is ignored: the lock lives until
// release is called.
func (l *LocalLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.locked[name]; busy {
		return nil, domain.ErrPeriodLocked
	}
	l.locked[name] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.locked, name)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}
