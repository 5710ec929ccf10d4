package session

import "sync"

// subjectLocks serializes admission decisions per subject.
//
// The limit invariant depends on the read-count-then-insert sequence being
// atomic per subject; a keyed mutex keeps concurrent registrations for the
// same subject from racing for the last slot while leaving unrelated
// subjects fully concurrent.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

// acquire locks the subject's mutex and returns the matching unlock func.
// Entries are reference-counted so the map does not grow with the number of
// subjects ever seen.
func (l *subjectLocks) acquire(subject string) (unlock func()) {
	l.mu.Lock()
	sl := l.locks[subject]
	if sl == nil {
		sl = &subjectLock{}
		l.locks[subject] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, subject)
		}
		l.mu.Unlock()
	}
}
