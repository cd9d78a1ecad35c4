package platform

import (
	"context"
	"sync"

	"github.com/sakif/snippet-vault/internal/model"
)

// Event names an auth state change.
type Event string

const (
	// EventInitialSession is delivered once to each new subscriber with the
	// session as it stands when the subscriber starts (possibly nil).
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// AuthChangeFunc receives auth events. session is nil after sign-out.
type AuthChangeFunc func(event Event, session *model.Session)

type authEvent struct {
	event   Event
	session *model.Session
}

// subscriber delivers events to one callback, in order, on its own
// goroutine. push never blocks, so a slow callback cannot stall the client.
type subscriber struct {
	fn AuthChangeFunc

	mu    sync.Mutex
	queue []authEvent

	wake     chan struct{} // capacity 1
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(fn AuthChangeFunc) *subscriber {
	return &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscriber) push(e authEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default: // already signalled
	}
}

func (s *subscriber) pop() (authEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return authEvent{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscriber) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run delivers the initial session, then queued events until stop.
func (s *subscriber) run(ctx context.Context, initial func(context.Context) *model.Session) {
	sess := initial(ctx)
	if s.stopped() {
		return
	}
	s.fn(EventInitialSession, sess)

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			e, ok := s.pop()
			if !ok {
				break
			}
			if s.stopped() {
				return
			}
			s.fn(e.event, e.session)
		}
	}
}
