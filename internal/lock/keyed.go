package lock

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// Keyed is an in-process Locker. Entries live only while someone holds or waits for them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

// NewKeyed returns a Keyed locker; wait bounds every Lock call (0 means unbounded).
func NewKeyed(wait time.Duration) *Keyed {
	return &Keyed{
		entries: make(map[string]*entry),
		wait:    wait,
	}
}

func (k *Keyed) Lock(ctx context.Context, keys ...string) (func(), error) {
	if k.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.wait)
		defer cancel()
	}

	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := k.acquire(ctx, key); err != nil {
			k.release(held)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(held) })
	}, nil
}

func (k *Keyed) acquire(ctx context.Context, key string) error {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.drop(key, e)
		return waitError(ctx)
	}
}

func (k *Keyed) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k.mu.Lock()
		e := k.entries[keys[i]]
		k.mu.Unlock()

		<-e.ch
		k.drop(keys[i], e)
	}
}

func (k *Keyed) drop(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// size reports how many keys are currently tracked.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
