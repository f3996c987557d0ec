package engine

import (
	"sync"

	"github.com/seantiz/urlcheck/internal/model"
)

// subscriberBufferSize is the channel buffer for each hop subscriber.
// Hops are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// HopBroker fans out the hops of running checks to subscribers.
// It is safe for concurrent use.
//
// Finished checks keep a closed marker so that a subscriber arriving after
// the check ended receives a closed channel instead of blocking forever.
type HopBroker struct {
	mu     sync.Mutex
	topics map[string]*hopTopic
}

type hopTopic struct {
	subs   map[int]chan model.HopLine
	nextID int
	closed bool
}

// NewHopBroker creates a new hop broker.
func NewHopBroker() *HopBroker {
	return &HopBroker{
		topics: make(map[string]*hopTopic),
	}
}

func (b *HopBroker) topic(checkID string) *hopTopic {
	t, ok := b.topics[checkID]
	if !ok {
		t = &hopTopic{subs: make(map[int]chan model.HopLine)}
		b.topics[checkID] = t
	}
	return t
}

// Subscribe returns a channel receiving the hops of checkID published from now
// on, and an unsubscribe function. If the check already finished the channel
// is closed immediately.
func (b *HopBroker) Subscribe(checkID string) (<-chan model.HopLine, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(checkID)
	ch := make(chan model.HopLine, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish delivers hop to every current subscriber of hop.CheckID without
// blocking. Full subscribers miss the hop.
func (b *HopBroker) Publish(hop model.HopLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[hop.CheckID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- hop:
		default:
		}
	}
}

// Close ends the stream for checkID. Subscriber channels are closed and
// later Subscribe calls get a closed channel.
func (b *HopBroker) Close(checkID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topic(checkID)
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
