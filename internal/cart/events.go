package cart

// EventKind names a cart state change.
type EventKind int

const (
	EventRefreshed EventKind = iota + 1
	EventRefreshFailed
	EventLineUpdated
	EventLineRemoved
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventRefreshed:
		return "refreshed"
	case EventRefreshFailed:
		return "refresh_failed"
	case EventLineUpdated:
		return "line_updated"
	case EventLineRemoved:
		return "line_removed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the state has changed. LineID is
// set for line events.
type Event struct {
	Kind   EventKind
	LineID int64
	Err    error
	// Lines holds the line ids present after a refresh.
	Lines []int64
}

const subscriberBuffer = 64

// Subscribe returns a channel of cart events and a function that ends the
// subscription. Events are dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// publish must be called with s.mu held.
func (s *Store) publish(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("cart event dropped")
		}
	}
}
