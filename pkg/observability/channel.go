package observability

import (
	"sync"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Channel is a per-kernel publish/subscribe hub for domain events.
type Channel struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{subs: make(map[*Subscription]struct{})}
}

// Publish hands event to every current subscriber. It returns once the event
// is queued and never waits for a consumer. Publishing on a closed channel is a no-op.
func (c *Channel) Publish(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for s := range c.subs {
		s.push(event)
	}
}

// Subscribe registers a new subscriber that receives every event published
// after this call, in publication order.
func (c *Channel) Subscribe() *Subscription {
	s := &Subscription{
		parent: c,
		out:    make(chan domain.Event),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	c.mu.Lock()
	if c.closed {
		s.draining = true
	} else {
		c.subs[s] = struct{}{}
	}
	c.mu.Unlock()

	go s.pump()
	return s
}

// Observe runs fn for every event on its own subscription until the returned
// stop function is called or the channel is closed. stop waits for fn to return.
func (c *Channel) Observe(fn func(domain.Event)) (stop func()) {
	sub := c.Subscribe()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for e := range sub.C() {
			fn(e)
		}
	}()
	return func() {
		sub.Close()
		<-finished
	}
}

// Close delivers what is already queued to each subscriber and then closes
// their channels. Further publications are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[*Subscription]struct{})
	c.mu.Unlock()

	for s := range subs {
		s.drain()
	}
}

func (c *Channel) remove(s *Subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

// Subscription is one consumer of a Channel.
type Subscription struct {
	parent *Channel

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []domain.Event
	draining bool

	out      chan domain.Event
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// C returns the delivery channel. It is closed after Close, or after the
// parent channel closes and the backlog has been delivered.
func (s *Subscription) C() <-chan domain.Event {
	return s.out
}

// Close detaches the subscription and discards anything still queued.
func (s *Subscription) Close() {
	s.parent.remove(s)
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	<-s.done
}

func (s *Subscription) push(e domain.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Subscription) drain() {
	s.mu.Lock()
	s.draining = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Subscription) pump() {
	defer close(s.done)
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.draining && !s.stopped() {
			s.cond.Wait()
		}
		if s.stopped() || len(s.queue) == 0 {
			s.queue = nil
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.stop:
			return
		}
	}
}
