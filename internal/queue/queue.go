package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Topics carried on the in-process bus.
const (
	TopicProgress = "campaign_progress"
	TopicReplies  = "reply_reports"
	TopicEvents   = "outbound_events"
)

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) (int, error)
	Unsubscribe(topic string, id int)
}

// InMemoryQueue is a production-ready in-memory queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string]map[int]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := make([]func(payload any) error, 0, len(q.handlers[topic]))
	for _, h := range q.handlers[topic] {
		handlers = append(handlers, h)
	}
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic. The returned id releases the
// subscription via Unsubscribe.
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handlers[topic] == nil {
		q.handlers[topic] = make(map[int]func(payload any) error)
	}
	q.nextID++
	q.handlers[topic][q.nextID] = handler
	return q.nextID, nil
}

// Unsubscribe removes a handler; unknown ids are a no-op.
func (q *InMemoryQueue) Unsubscribe(topic string, id int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.handlers[topic], id)
}
