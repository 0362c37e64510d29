package workout

import (
	"sync"
	"time"

	"github.com/joescharf/lift/internal/models"
)

// EventKind names an observable session transition.
type EventKind string

const (
	EventStateChanged    EventKind = "state_changed"
	EventSetCompleted    EventKind = "set_completed"
	EventSetSkipped      EventKind = "set_skipped"
	EventSetUpdated      EventKind = "set_updated"
	EventSetReopened     EventKind = "set_reopened"
	EventCursorMoved     EventKind = "cursor_moved"
	EventRestTick        EventKind = "rest_tick"
	EventRestFinished    EventKind = "rest_finished"
	EventSessionFinished EventKind = "session_finished"
	EventSaveFailed      EventKind = "save_failed"
)

// Event is a single notification on a session's stream. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind             EventKind            `json:"kind"`
	SessionID        string               `json:"session_id"`
	State            models.SessionStatus `json:"state,omitempty"`
	Exercise         int                  `json:"exercise"`
	Set              int                  `json:"set"`
	SecondsRemaining int                  `json:"seconds_remaining,omitempty"`
	Summary          *models.Summary      `json:"summary,omitempty"`
	Error            string               `json:"error,omitempty"`
	At               time.Time            `json:"at"`
}

// Bus fans events out to subscribers. Each subscriber has its own unbounded
// queue, so publishing never blocks and a slow reader never loses events.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	next   int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel receiving every event published after the
// call, in publish order, and a function that ends the subscription. The
// channel is closed when the subscription ends or the bus closes.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber()
	if b.closed {
		sub.stop()
		return sub.out, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = sub

	return sub.out, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish queues e for every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.push(e)
	}
}

// Close ends every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.stop()
		delete(b.subs, id)
	}
}

type subscriber struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	quit   chan struct{}
	once   sync.Once
	out    chan Event
}

func newSubscriber() *subscriber {
	s := &subscriber{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		out:    make(chan Event),
	}
	go s.run()
	return s
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		select {
		case <-s.quit:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- e:
			case <-s.quit:
				return
			}
		}
	}
}
