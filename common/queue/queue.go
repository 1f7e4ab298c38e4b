package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/anatraz/limsbridge/common/logger"
)

// Queue interface for message passing between the receive side and the
// processing side of the service.
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// MemoryQueue is an in-process FIFO queue. Each topic is a buffered channel
// drained by a single consumer goroutine, so dequeue order matches arrival
// order per topic.
type MemoryQueue struct {
	topics  map[string]chan *Message
	bufSize int
	mu      sync.RWMutex
	closed  bool
	log     *logger.Logger
}

// Message represents a queue message. ID is assigned on publish and ties
// log lines on both sides of the queue together.
type Message struct {
	ID    string
	Topic string
	Key   string
	Value []byte
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufSize int, log *logger.Logger) *MemoryQueue {
	if bufSize <= 0 {
		bufSize = 1000
	}
	return &MemoryQueue{
		topics:  make(map[string]chan *Message),
		bufSize: bufSize,
		log:     log,
	}
}

func (q *MemoryQueue) topic(name string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, exists := q.topics[name]
	if !exists {
		ch = make(chan *Message, q.bufSize)
		q.topics[name] = ch
	}
	return ch
}

// Publish enqueues a message. It blocks when the topic buffer is full rather
// than dropping: inbound frames have already been ACKed and must not be lost
// inside the process.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	ch := q.topic(topic)

	msg := &Message{
		ID:    uuid.NewString(),
		Topic: topic,
		Key:   key,
		Value: message,
	}

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe starts a single consumer goroutine for the topic. Handler errors
// are logged and the entry is considered consumed; there is no redelivery.
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch := q.topic(topic)

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "message_id", msg.ID, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}

	return nil
}
