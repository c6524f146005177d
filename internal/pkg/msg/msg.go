package msg

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Topic partitions published messages.
type Topic int

const (
	// Frame carries a trajectory.Frame sampled during a run
	Frame Topic = iota
	// Event carries run lifecycle strings (configured, initialized, disturbed, complete)
	Event
	// Config carries the run configuration payload
	Config
)

// Publisher is an interface for objects that allow subscription to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg wraps a payload with its sender and topic
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans messages out to per-topic subscribers.
type PubSub struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	broadcast map[Topic]map[uuid.UUID]chan<- Msg
}

// NewPublisher is the PubSub factory function
func NewPublisher(pid uuid.UUID) *PubSub {
	broadcast := make(map[Topic]map[uuid.UUID]chan<- Msg)
	return &PubSub{&sync.Mutex{}, pid, broadcast}
}

// PID returns the publisher's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel on which messages published to topic are sent.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.broadcast[topic]; !ok {
		p.broadcast[topic] = make(map[uuid.UUID]chan<- Msg)
	}
	if _, ok := p.broadcast[topic][pid]; ok {
		return nil, fmt.Errorf("pid %v already subscribed to topic %v", pid, topic)
	}
	ch := make(chan Msg, 50)
	p.broadcast[topic][pid] = ch
	return ch, nil
}

// Unsubscribe closes and removes all channels held for pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.broadcast {
		if ch, ok := subs[pid]; ok {
			delete(subs, pid)
			close(ch)
		}
	}
}

// Publish sends payload to all subscribers of topic. Slow subscribers are
// skipped rather than blocking the run loop.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.broadcast[topic] {
		select {
		case ch <- New(p.pid, topic, payload):
		default:
		}
	}
}

// Close unsubscribes all subscribers.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for topic, subs := range p.broadcast {
		for pid, ch := range subs {
			delete(subs, pid)
			close(ch)
		}
		delete(p.broadcast, topic)
	}
}
