package application

import "sync"

// Waiter lets a capture request block until the webhook for its order id
// has been applied, replacing a poll against the store. Registration must
// happen before the gateway capture call so a fast webhook cannot slip
// between capture and wait.
type Waiter struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

func NewWaiter() *Waiter {
	return &Waiter{subs: make(map[string][]chan struct{})}
}

// Register returns a channel that receives one signal when Notify is
// called for orderID, and a release func the caller must invoke when done.
func (w *Waiter) Register(orderID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	w.mu.Lock()
	w.subs[orderID] = append(w.subs[orderID], ch)
	w.mu.Unlock()

	release := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		subs := w.subs[orderID]
		for i, c := range subs {
			if c == ch {
				w.subs[orderID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(w.subs[orderID]) == 0 {
			delete(w.subs, orderID)
		}
	}
	return ch, release
}

// Notify wakes every registered waiter for orderID without blocking.
func (w *Waiter) Notify(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs[orderID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
