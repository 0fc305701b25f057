package app

import "sync"

// loanLocks serializes mutations per loan id so concurrent writers observe
// read-modify-write atomicity without blocking unrelated loans. Entries are
// refcounted and dropped once the last holder releases, so the table stays
// proportional to in-flight mutations rather than to loans ever touched.
type loanLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: map[string]*lockEntry{}}
}

func (l *loanLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
