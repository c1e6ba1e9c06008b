// Package queue implements the orchestrator's message plumbing: a
// stable-ordered PriorityQueue (C1) and the MessageBus (C2) built on top of
// it, with owner-routed handlers and at-most-once delivery across restarts.
package queue

import "github.com/harrison/orchestrator/internal/models"

// PriorityQueue is an ordered sequence of messages keyed by priority rank,
// FIFO within equal priority. It performs no synchronization of its own —
// MessageBus holds the lock that guards all access, per the single-flight
// processing model it implements.
type PriorityQueue struct {
	items []*models.QueueMessage
	seq   map[string]int64 // insertion sequence, for stable FIFO tie-break
	next  int64
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{seq: make(map[string]int64)}
}

// Enqueue appends msg and restores priority order via a stable insertion
// sort: ties keep insertion order, higher priority ranks earlier.
func (q *PriorityQueue) Enqueue(msg *models.QueueMessage) {
	q.seq[msg.ID] = q.next
	q.next++

	i := len(q.items)
	q.items = append(q.items, msg)
	for i > 0 && q.less(msg, q.items[i-1]) {
		q.items[i] = q.items[i-1]
		i--
	}
	q.items[i] = msg
}

// less reports whether a should sort before b: higher priority rank first,
// lower insertion sequence (earlier enqueue) first among equal priority.
func (q *PriorityQueue) less(a, b *models.QueueMessage) bool {
	ra, rb := a.Priority.Rank(), b.Priority.Rank()
	if ra != rb {
		return ra > rb
	}
	return q.seq[a.ID] < q.seq[b.ID]
}

// Dequeue removes and returns the head of the queue, or nil if empty.
func (q *PriorityQueue) Dequeue() *models.QueueMessage {
	if len(q.items) == 0 {
		return nil
	}
	msg := q.items[0]
	delete(q.seq, msg.ID)
	q.items = q.items[1:]
	return msg
}

// Peek returns the head of the queue without removing it, or nil if empty.
func (q *PriorityQueue) Peek() *models.QueueMessage {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Snapshot returns a copy of the current queue contents in dequeue order.
func (q *PriorityQueue) Snapshot() []*models.QueueMessage {
	out := make([]*models.QueueMessage, len(q.items))
	copy(out, q.items)
	return out
}

// Size returns the number of items currently queued.
func (q *PriorityQueue) Size() int {
	return len(q.items)
}

// Clear empties the queue.
func (q *PriorityQueue) Clear() {
	q.items = nil
	q.seq = make(map[string]int64)
	q.next = 0
}

// Remove deletes the message with the given id from the queue, if present,
// and reports whether it was found. Used when a message must be pulled out
// of order (e.g. MessageBus's processing loop removing the head before
// invoking its handler).
func (q *PriorityQueue) Remove(id string) (*models.QueueMessage, bool) {
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			delete(q.seq, id)
			return item, true
		}
	}
	return nil, false
}

// Contains reports whether a message with the given id is currently queued.
func (q *PriorityQueue) Contains(id string) bool {
	_, ok := q.seq[id]
	return ok
}
