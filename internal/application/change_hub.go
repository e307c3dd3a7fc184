package application

import "sync"

// ChangeHub fans registry changes out to the reminder watchers of the
// affected accounts.
type ChangeHub struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]func()
}

// NewChangeHub returns an empty hub.
func NewChangeHub() *ChangeHub {
	return &ChangeHub{subs: make(map[string]map[uint64]func())}
}

// Subscribe registers wake for changes touching accountID. The returned
// function removes the subscription and is safe to call more than once.
func (h *ChangeHub) Subscribe(accountID string, wake func()) (unsubscribe func()) {
	if h == nil || wake == nil {
		return func() {}
	}
	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[accountID] == nil {
		h.subs[accountID] = make(map[uint64]func())
	}
	h.subs[accountID][id] = wake
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[accountID], id)
			if len(h.subs[accountID]) == 0 {
				delete(h.subs, accountID)
			}
		})
	}
}

// NotifyAccounts wakes every subscriber of the given accounts. Wake functions
// run outside the hub lock.
func (h *ChangeHub) NotifyAccounts(accountIDs ...string) {
	if h == nil {
		return
	}
	var wakes []func()
	seen := make(map[string]struct{}, len(accountIDs))
	h.mu.Lock()
	for _, accountID := range accountIDs {
		if _, ok := seen[accountID]; ok {
			continue
		}
		seen[accountID] = struct{}{}
		for _, wake := range h.subs[accountID] {
			wakes = append(wakes, wake)
		}
	}
	h.mu.Unlock()

	for _, wake := range wakes {
		wake()
	}
}

// Subscribers returns the number of live subscriptions for accountID.
func (h *ChangeHub) Subscribers(accountID string) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[accountID])
}
