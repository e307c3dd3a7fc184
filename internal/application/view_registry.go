package application

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/mindfolk/internal/reminder"
)

const (
	// DefaultMaxViews bounds the mounted reminder views of one account.
	DefaultMaxViews = 16
	// DefaultViewTTL is how long an untouched view keeps its dismissals.
	DefaultViewTTL = 30 * time.Minute
)

// viewState is the in-memory state of one mounted view.
type viewState struct {
	view       View
	dismissals *reminder.DismissalStore

	mu       sync.Mutex
	closed   bool
	watchers map[*reminder.Watcher]context.CancelCauseFunc
}

func newViewState(view View) *viewState {
	return &viewState{
		view:       view,
		dismissals: reminder.NewDismissalStore(),
		watchers:   make(map[*reminder.Watcher]context.CancelCauseFunc),
	}
}

// attach registers a running watcher. It reports false once the view is closed.
func (v *viewState) attach(w *reminder.Watcher, cancel context.CancelCauseFunc) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.watchers[w] = cancel
	return true
}

func (v *viewState) detach(w *reminder.Watcher) {
	v.mu.Lock()
	delete(v.watchers, w)
	v.mu.Unlock()
}

func (v *viewState) wake() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for w := range v.watchers {
		w.Wake()
	}
}

func (v *viewState) streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watchers) > 0
}

func (v *viewState) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// close drops the dismissals and stops every attached watcher with ErrViewNotFound.
func (v *viewState) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.dismissals.Clear()
	for w, cancel := range v.watchers {
		cancel(ErrViewNotFound)
		delete(v.watchers, w)
	}
}

// ViewRegistry holds mounted views in an LRU whose entries expire after a
// period without access. An expired view behaves like an unmounted one: its
// dismissals are gone and its streams end. Each account holds at most
// perAccount views; opening one more unmounts that account's least recently
// used view, so accounts never evict each other.
type ViewRegistry struct {
	mu         sync.Mutex
	cache      *expirable.LRU[string, *viewState]
	perAccount int
	ttl        time.Duration
}

// NewViewRegistry builds a registry. Non-positive arguments select the defaults.
func NewViewRegistry(perAccount int, ttl time.Duration) *ViewRegistry {
	if perAccount <= 0 {
		perAccount = DefaultMaxViews
	}
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	onEvict := func(_ string, state *viewState) {
		state.close()
	}
	return &ViewRegistry{
		cache:      expirable.NewLRU[string, *viewState](0, onEvict, ttl),
		perAccount: perAccount,
		ttl:        ttl,
	}
}

// add mounts state. When the owner is at its limit, its least recently used
// view without a stream is unmounted, or its least recently used view when
// every one has a stream.
func (r *ViewRegistry) add(state *viewState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.owned(state.view.AccountID)
	for len(owned) >= r.perAccount {
		victim := 0
		for i, candidate := range owned {
			if !candidate.streaming() {
				victim = i
				break
			}
		}
		r.cache.Remove(owned[victim].view.ID)
		owned = slices.Delete(owned, victim, victim+1)
	}
	r.cache.Add(state.view.ID, state)
}

// owned returns the live views of accountID from least to most recently
// used. Expired views met on the way are unmounted.
func (r *ViewRegistry) owned(accountID string) []*viewState {
	var owned []*viewState
	for _, id := range r.cache.Keys() {
		state, ok := r.cache.Peek(id)
		if !ok {
			r.cache.Remove(id)
			continue
		}
		if state.view.AccountID == accountID && !state.isClosed() {
			owned = append(owned, state)
		}
	}
	return owned
}

// get returns a live view and renews its expiry. A view that expired but was
// not swept yet is unmounted here.
func (r *ViewRegistry) get(id string) (*viewState, bool) {
	state, ok := r.cache.Get(id)
	if !ok {
		r.cache.Remove(id)
		return nil, false
	}
	if state.isClosed() {
		r.cache.Remove(id)
		return nil, false
	}
	r.cache.Add(id, state)
	if state.isClosed() {
		r.cache.Remove(id)
		return nil, false
	}
	return state, true
}

func (r *ViewRegistry) remove(id string) bool {
	return r.cache.Remove(id)
}

// keepAlive renews the view several times per TTL until ctx ends or the view
// is unmounted. A view with an open stream therefore never expires.
func (r *ViewRegistry) keepAlive(ctx context.Context, id string) {
	ticker := time.NewTicker(max(r.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := r.get(id); !ok {
				return
			}
		}
	}
}
