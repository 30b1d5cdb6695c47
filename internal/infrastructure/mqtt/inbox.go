package mqtt

import (
	"sync/atomic"
	"time"
)

// DefaultInboxSize is enough for a burst of discovery snapshots while
// the ingest loop is busy replacing the previous one.
const DefaultInboxSize = 8

// Message is a received payload with its topic.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Inbox decouples paho's delivery goroutine from a consumer loop.
//
// It is bounded and never blocks the producer: when full, the oldest
// pending message is discarded to make room. That matches snapshot
// topics, where only the newest payload matters.
type Inbox struct {
	ch      chan Message
	dropped atomic.Uint64
}

// NewInbox creates an inbox holding at most size pending messages.
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan Message, size)}
}

// Handler returns a MessageHandler that feeds this inbox.
func (i *Inbox) Handler() MessageHandler {
	return func(topic string, payload []byte) error {
		i.Push(Message{
			Topic:    topic,
			Payload:  append([]byte(nil), payload...),
			Received: time.Now(),
		})
		return nil
	}
}

// Push enqueues msg, evicting the oldest entry while the inbox is full.
func (i *Inbox) Push(msg Message) {
	for {
		select {
		case i.ch <- msg:
			return
		default:
		}

		select {
		case <-i.ch:
			i.dropped.Add(1)
		default:
		}
	}
}

// C is the consumer side.
func (i *Inbox) C() <-chan Message {
	return i.ch
}

// Len is the number of pending messages.
func (i *Inbox) Len() int {
	return len(i.ch)
}

// Dropped counts messages evicted because the consumer fell behind.
func (i *Inbox) Dropped() uint64 {
	return i.dropped.Load()
}
