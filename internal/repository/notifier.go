package repository

import "sync"

// Notifier fans change signals out to live queries. Each subscriber holds
// at most one pending signal; further signals while one is pending are
// dropped because the re-run it triggers will see every committed change.
type Notifier struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*subscriber]struct{})}
}

func (n *Notifier) subscribe() *subscriber {
	s := &subscriber{ch: make(chan struct{}, 1)}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	return s
}

func (n *Notifier) unsubscribe(s *subscriber) {
	n.mu.Lock()
	delete(n.subs, s)
	n.mu.Unlock()
}

// Notify signals every subscriber without blocking.
func (n *Notifier) Notify() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for s := range n.subs {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}
