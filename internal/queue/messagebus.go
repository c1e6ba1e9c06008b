package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harrison/orchestrator/internal/filelock"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
)

// Handler processes a single message. A non-nil error is logged and
// swallowed; the bus always marks the message processed regardless, since
// handlers own their own retry policy (spec'd "single-flight" contract).
type Handler func(ctx context.Context, msg *models.QueueMessage) error

// Disposable clears a previously registered handler slot.
type Disposable func()

// EnqueueListener is invoked after a message is newly enqueued or after it
// has been processed.
type EnqueueListener func(msg *models.QueueMessage)

// MessageBus is the owner-routed, at-most-once, persisted message queue
// (C2). It owns a single lock guarding the queue, the processed-id set, and
// the handler table, matching the single-flight cooperative processing
// model: enqueue may happen concurrently, but only one handler invocation
// runs at a time.
type MessageBus struct {
	mu sync.Mutex

	queue     *PriorityQueue
	processed map[string]bool

	defaultHandler Handler
	ownerHandlers  map[string]Handler

	processing bool

	onEnqueued  EnqueueListener
	onProcessed EnqueueListener

	statePath string
	log       logger.Logger
}

// busState is the on-disk persistence shape: queue snapshot plus the
// processed-id set, restored on startup to guarantee at-most-once delivery
// across restarts.
type busState struct {
	Queue     []*models.QueueMessage `json:"queue"`
	Processed []string               `json:"processed"`
}

// NewMessageBus constructs an empty bus. statePath, if non-empty, is the
// workspace-relative file the bus persists its snapshot to after every
// mutation.
func NewMessageBus(statePath string, log logger.Logger) *MessageBus {
	return &MessageBus{
		queue:         NewPriorityQueue(),
		processed:     make(map[string]bool),
		ownerHandlers: make(map[string]Handler),
		statePath:     statePath,
		log:           log,
	}
}

// OnEnqueued registers the listener fired after every successful enqueue.
func (b *MessageBus) OnEnqueued(l EnqueueListener) { b.onEnqueued = l }

// OnProcessed registers the listener fired after every message is processed.
func (b *MessageBus) OnProcessed(l EnqueueListener) { b.onProcessed = l }

// Restore loads a previously persisted snapshot, re-enqueuing pending
// messages and re-populating the processed set. A missing file is not an
// error — it means a fresh bus.
func (b *MessageBus) Restore() error {
	if b.statePath == "" {
		return nil
	}
	data, err := readFileIfExists(b.statePath)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var state busState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse queue state: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msg := range state.Queue {
		b.queue.Enqueue(msg)
	}
	for _, id := range state.Processed {
		b.processed[id] = true
	}
	return nil
}

// Enqueue adds msg to the queue unless its id is already processed or
// already queued, in which case the call is a no-op. On success it fires
// onEnqueued, persists, and schedules processing.
func (b *MessageBus) Enqueue(ctx context.Context, msg *models.QueueMessage) {
	b.mu.Lock()
	if b.processed[msg.ID] || b.queue.Contains(msg.ID) {
		b.mu.Unlock()
		return
	}
	b.queue.Enqueue(msg)
	b.mu.Unlock()

	if b.onEnqueued != nil {
		b.onEnqueued(msg)
	}
	b.persist()
	b.process(ctx)
}

// RegisterDefaultHandler sets the handler used for messages with no owner
// or whose owner has no registered handler, and immediately re-triggers
// processing so messages left waiting for a handler are picked up.
func (b *MessageBus) RegisterDefaultHandler(h Handler) Disposable {
	b.mu.Lock()
	b.defaultHandler = h
	b.mu.Unlock()

	b.process(context.Background())
	return func() {
		b.mu.Lock()
		b.defaultHandler = nil
		b.mu.Unlock()
	}
}

// RegisterOwnerHandler adds a per-owner handler and immediately re-triggers
// processing so any pending messages for that owner are picked up.
func (b *MessageBus) RegisterOwnerHandler(ctx context.Context, ownerID string, h Handler) Disposable {
	b.mu.Lock()
	b.ownerHandlers[ownerID] = h
	b.mu.Unlock()

	b.process(ctx)

	return func() {
		b.mu.Lock()
		delete(b.ownerHandlers, ownerID)
		b.mu.Unlock()
	}
}

// PendingForOwner returns the queued (not yet processed) messages owned by
// ownerID, without consuming them.
func (b *MessageBus) PendingForOwner(ownerID string) []*models.QueueMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*models.QueueMessage
	for _, m := range b.queue.Snapshot() {
		if m.Owner.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out
}

// GetByID inspects a queued message without consuming it.
func (b *MessageBus) GetByID(id string) (*models.QueueMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.queue.Snapshot() {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// IsProcessed reports whether id has already been delivered.
func (b *MessageBus) IsProcessed(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed[id]
}

// MarkProcessed records id as delivered without running a handler. Exposed
// for callers replaying external state.
func (b *MessageBus) MarkProcessed(id string) {
	b.mu.Lock()
	b.processed[id] = true
	b.mu.Unlock()
	b.persist()
}

// Size returns the number of messages currently queued.
func (b *MessageBus) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Size()
}

// handlerFor looks up the handler for msg: owner-specific if msg.Owner.OwnerID
// matches a registered owner, else the default handler.
func (b *MessageBus) handlerFor(msg *models.QueueMessage) Handler {
	if msg.Owner.OwnerID != "" {
		if h, ok := b.ownerHandlers[msg.Owner.OwnerID]; ok {
			return h
		}
	}
	return b.defaultHandler
}

// process drains the queue cooperatively: a re-entrancy guard ensures only
// one goroutine runs the loop at a time. Messages with no handler are left
// in place; a later RegisterOwnerHandler/RegisterDefaultHandler call must
// re-trigger processing to pick them up.
func (b *MessageBus) process(ctx context.Context) {
	b.mu.Lock()
	if b.processing {
		b.mu.Unlock()
		return
	}
	b.processing = true
	b.mu.Unlock()

	// The guard is cleared under the same lock hold that finds nothing left
	// to deliver, so an Enqueue racing with this exit either is seen here or
	// finds the guard already cleared and drains the queue itself.
	for {
		b.mu.Lock()
		head := b.queue.Peek()
		if head == nil {
			b.processing = false
			b.mu.Unlock()
			return
		}
		handler := b.handlerFor(head)
		if handler == nil {
			b.processing = false
			b.mu.Unlock()
			return
		}
		b.queue.Remove(head.ID)
		b.mu.Unlock()

		if err := handler(ctx, head); err != nil && b.log != nil {
			b.log.Warn("message handler failed", logger.F("messageId", head.ID), logger.F("type", head.Type), logger.F("error", err))
		}

		b.mu.Lock()
		b.processed[head.ID] = true
		b.mu.Unlock()

		if b.onProcessed != nil {
			b.onProcessed(head)
		}
		b.persist()
	}
}

// persist writes the queue + processed-id snapshot to statePath, guarded by
// a cross-process flock so concurrent orchestrator instances never
// interleave writes (same pattern C8 uses for its own state file).
func (b *MessageBus) persist() {
	if b.statePath == "" {
		return
	}

	b.mu.Lock()
	state := busState{Queue: b.queue.Snapshot()}
	for id := range b.processed {
		state.Processed = append(state.Processed, id)
	}
	b.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		if b.log != nil {
			b.log.Error("marshal queue state", logger.F("error", err))
		}
		return
	}

	if err := filelock.LockAndWrite(b.statePath, data); err != nil && b.log != nil {
		b.log.Error("persist queue state", logger.F("path", b.statePath), logger.F("error", err))
	}
}
