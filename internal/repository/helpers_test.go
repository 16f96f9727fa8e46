package repository

func (n *Notifier) subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// stopped is closed once the stream has fully stopped.
func (s *Stream[T]) stopped() <-chan struct{} {
	return s.done
}
