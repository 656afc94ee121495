package memory

import (
	"context"
	"sync"

	"roomstay/internal/app/policies"
	"roomstay/internal/domain/units"
)

// UnitLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type UnitLocker struct {
	mu    sync.Mutex
	locks map[units.UnitID]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewUnitLocker() *UnitLocker {
	return &UnitLocker{locks: make(map[units.UnitID]*keyedLock)}
}

func (l *UnitLocker) Lock(ctx context.Context, unitID units.UnitID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[unitID]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[unitID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(unitID, entry, false)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(unitID, entry, true) })
	}, nil
}

func (l *UnitLocker) release(unitID units.UnitID, entry *keyedLock, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, unitID)
	}
}

var _ policies.UnitLocker = (*UnitLocker)(nil)
