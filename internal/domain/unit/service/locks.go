package service

import "sync"

// unitLocks is a keyed non-blocking mutex: at most one holder per unit.
type unitLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newUnitLocks() *unitLocks {
	return &unitLocks{held: make(map[string]struct{})}
}

// TryLock acquires the lock of key without waiting. The returned release
// func must be called exactly once when ok is true.
func (l *unitLocks) TryLock(key string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}
