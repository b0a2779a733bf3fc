package usecase

import (
	"context"
	"sync"
)

// accountLocker serializes balance mutations per account. Entries are
// reference-counted so the map does not grow with the number of accounts
// ever seen, only with the number currently contended.
type accountLocker struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	// token channel with capacity 1; holding the token means holding the lock
	token chan struct{}
	refs  int
}

func newAccountLocker() *accountLocker {
	return &accountLocker{locks: make(map[string]*accountLock)}
}

// acquire blocks until the account lock is held or ctx is done. On ctx
// expiry nothing is held and nothing needs releasing.
func (l *accountLocker) acquire(ctx context.Context, id string) error {
	l.mu.Lock()
	al, ok := l.locks[id]
	if !ok {
		al = &accountLock{token: make(chan struct{}, 1)}
		al.token <- struct{}{}
		l.locks[id] = al
	}
	al.refs++
	l.mu.Unlock()

	select {
	case <-al.token:
		return nil
	case <-ctx.Done():
		l.unref(id)
		return ctx.Err()
	}
}

// release returns the lock token and drops the holder's reference.
func (l *accountLocker) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	al := l.locks[id]
	if al == nil {
		return
	}

	al.refs--
	if al.refs == 0 {
		delete(l.locks, id)
		return
	}

	al.token <- struct{}{}
}

func (l *accountLocker) unref(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	al := l.locks[id]
	if al == nil {
		return
	}

	al.refs--
	if al.refs == 0 {
		delete(l.locks, id)
	}
}

// lockPair acquires both account locks in lexicographic ID order, regardless
// of transfer direction. The total order makes cycles impossible, so two
// opposite transfers between the same pair cannot deadlock. The returned
// function releases both locks and must be called on every exit path.
func (l *accountLocker) lockPair(ctx context.Context, a, b string) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	if err := l.acquire(ctx, first); err != nil {
		return nil, err
	}

	if err := l.acquire(ctx, second); err != nil {
		l.release(first)
		return nil, err
	}

	return func() {
		l.release(second)
		l.release(first)
	}, nil
}
