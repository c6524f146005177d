package msg

import (
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestSubscribe(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub1, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub2, err := uuid.NewUUID()
	assert.NilError(t, err)

	pubsub := NewPublisher(pidPub)
	ch1, err := pubsub.Subscribe(pidSub1, Frame)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pidSub2, Frame)
	assert.NilError(t, err)

	pubsub.Publish(Frame, 0.997)

	incoming := <-ch1
	assert.Equal(t, incoming.Payload(), 0.997, "first subscriber did not receive the published value")
	assert.Equal(t, incoming.Topic(), Frame)
	assert.Equal(t, incoming.PID(), pidPub)

	incoming = <-ch2
	assert.Equal(t, incoming.Payload(), 0.997, "second subscriber did not receive the published value")
}

func TestSubscribeTwice(t *testing.T) {
	pidPub, _ := uuid.NewUUID()
	pidSub, _ := uuid.NewUUID()

	pubsub := NewPublisher(pidPub)
	_, err := pubsub.Subscribe(pidSub, Event)
	assert.NilError(t, err)

	_, err = pubsub.Subscribe(pidSub, Event)
	assert.Assert(t, err != nil, "duplicate subscription was accepted")
}

func TestTopicIsolation(t *testing.T) {
	pidPub, _ := uuid.NewUUID()
	pidSub, _ := uuid.NewUUID()

	pubsub := NewPublisher(pidPub)
	chEvent, err := pubsub.Subscribe(pidSub, Event)
	assert.NilError(t, err)

	pubsub.Publish(Frame, 1.0)
	pubsub.Publish(Event, "initialized")

	incoming := <-chEvent
	assert.Equal(t, incoming.Payload(), "initialized", "subscriber received a message from the wrong topic")
}

func TestUnsubscribe(t *testing.T) {
	pidPub, _ := uuid.NewUUID()
	pidSub, _ := uuid.NewUUID()

	pubsub := NewPublisher(pidPub)
	ch, err := pubsub.Subscribe(pidSub, Frame)
	assert.NilError(t, err)

	pubsub.Unsubscribe(pidSub)
	_, ok := <-ch
	assert.Assert(t, !ok, "channel left open after unsubscribe")
}
