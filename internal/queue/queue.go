/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package queue implements the per-session offline message store: the
// Offline Message Queue (spec §3.4, §4.4) together with its two
// supporting types, the Offline Message (§3.3, §4.3) and the Expiry Timer
// Handle (§4.2).
package queue

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/gopkg/collection/skipmap"
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse-broker/internal/xerror"
	"github.com/yunqi/lighthouse-broker/internal/xlog"
)

// OfflineMessageQueue is a per-session ordered collection of Offline
// Messages with a secondary index keyed by expiry-handle identity (spec
// §3.4). The primary (sequence) view is a doubly-linked list so
// enqueue/drain-head are O(1); the secondary (timer) view is a skip-list
// map from handle ID to list element so an expiry fire can remove its
// entry in average sub-linear time without scanning the sequence.
//
// The queue is owned by exactly one session. No method is safe to call
// concurrently with itself from multiple sessions sharing one queue,
// because no queue is ever shared: the mutex below exists only to
// serialize a queue's own operations against its own expiry callbacks,
// matching the "may serialize via a mutex instead" allowance in spec §5.
type OfflineMessageQueue struct {
	mu       sync.Mutex
	seq      *list.List         // of *OfflineMessage
	byHandle *skipmap.Int64Map // handle ID -> *list.Element
	log      *xlog.Log
}

// NewOfflineMessageQueue returns an empty queue.
func NewOfflineMessageQueue() *OfflineMessageQueue {
	return &OfflineMessageQueue{
		seq:      list.New(),
		byHandle: skipmap.NewInt64(),
		log:      xlog.LoggerModule("queue"),
	}
}

// Enqueue appends a new Offline Message to the tail of the queue (spec
// §4.4.1). If properties carries a MessageExpiryInterval, an expiry
// handle is scheduled against timerService and registered so that, when
// it fires, this entry is removed. timerService may be nil, in which
// case the message never expires (used by the property tests in spec §8
// that exercise enqueue/drain without a timer service).
func (q *OfflineMessageQueue) Enqueue(timerService TimerService, topic, payload []byte, options PublishOptions, properties PropertySet) {
	options.Dup = false // spec §3.1: Dup must be false on all offline-queued entries at enqueue time.

	// q.mu is held across Schedule so that a fire arriving before the
	// entry is indexed (e.g. a zero interval) waits until it is.
	q.mu.Lock()
	defer q.mu.Unlock()

	var handle *ExpiryHandle
	if seconds, ok := properties.MessageExpiryInterval(); ok && timerService != nil {
		handle = timerService.Schedule(time.Duration(seconds)*time.Second, q.onExpire)
	}

	msg := NewOfflineMessage(topic, payload, options, properties, handle)

	elem := q.seq.PushBack(msg)
	if handle != nil {
		q.byHandle.Store(int64(handle.ID()), elem)
	}
}

// IsEmpty reports whether the queue currently holds no entries.
func (q *OfflineMessageQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq.Len() == 0
}

// Len reports the number of entries currently queued.
func (q *OfflineMessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq.Len()
}

// Clear destroys all entries and cancels their expiry handles (spec
// §4.4.4).
func (q *OfflineMessageQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.seq.Front(); e != nil; e = e.Next() {
		msg := e.Value.(*OfflineMessage)
		if h := msg.ExpiryHandle(); h != nil {
			h.Cancel()
		}
	}
	q.seq.Init()
	q.byHandle = skipmap.NewInt64()
}

// DrainAll replays entries in enqueue order until the queue is empty or
// the endpoint reports packet-identifier exhaustion (spec §4.4.2). On
// exhaustion it logs at warning severity, stops, and leaves the
// remaining entries queued for a later DrainUntilOneIDConsumed. Any other
// failure from the endpoint is returned unchanged and the offending
// entry is left at the head of the queue.
func (q *OfflineMessageQueue) DrainAll(endpoint Endpoint) error {
	for {
		sent, err := q.drainHead(endpoint)
		if err != nil {
			if errors.Is(err, xerror.ErrPacketIDExhausted) {
				q.log.Warn("drain_all paused: endpoint packet identifiers exhausted",
					zap.Int("remaining", q.Len()))
				return nil
			}
			return err
		}
		if !sent {
			return nil
		}
	}
}

// DrainUntilOneIDConsumed replays entries in order after the endpoint
// reports that one packet identifier has been freed (spec §4.4.3). It
// stops immediately after the first successful send whose QoS consumes a
// packet ID; QoS-0 sends ahead of that entry are drained along the way.
func (q *OfflineMessageQueue) DrainUntilOneIDConsumed(endpoint Endpoint) error {
	for {
		sent, consumed, err := q.drainHeadUntilConsumed(endpoint)
		if err != nil {
			if errors.Is(err, xerror.ErrPacketIDExhausted) {
				// The invariant "we just freed an ID" was violated.
				q.log.Error("drain_until_one_id_consumed: packet identifier exhausted immediately after an ID was freed",
					zap.String("severity", "fatal"), zap.Int("remaining", q.Len()))
				return nil
			}
			return err
		}
		if !sent || consumed {
			return nil
		}
	}
}

func (q *OfflineMessageQueue) drainHead(endpoint Endpoint) (sent bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.seq.Front()
	if front == nil {
		return false, nil
	}
	msg := front.Value.(*OfflineMessage)
	if err := msg.Send(endpoint); err != nil {
		return false, err
	}
	q.removeLocked(front, msg)
	return true, nil
}

func (q *OfflineMessageQueue) drainHeadUntilConsumed(endpoint Endpoint) (sent bool, consumed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.seq.Front()
	if front == nil {
		return false, false, nil
	}
	msg := front.Value.(*OfflineMessage)
	if err := msg.Send(endpoint); err != nil {
		return false, false, err
	}
	consumedID := msg.Options().QoS.ConsumesPacketID()
	q.removeLocked(front, msg)
	return true, consumedID, nil
}

// removeLocked removes elem/msg from both views. Callers must hold q.mu.
func (q *OfflineMessageQueue) removeLocked(elem *list.Element, msg *OfflineMessage) {
	q.seq.Remove(elem)
	if h := msg.ExpiryHandle(); h != nil {
		q.byHandle.Delete(int64(h.ID()))
	}
}

// onExpire is the fire callback registered on Enqueue. It locates the
// owning entry through the secondary view by handle identity and removes
// it from both views. A miss (already drained, or the queue was cleared)
// is a no-op, as is a cancellation signal (spec §4.4.6).
func (q *OfflineMessageQueue) onExpire(handle *ExpiryHandle, sig FireSignal) {
	if sig == FireCancelled {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.byHandle.Load(int64(handle.ID()))
	if !ok {
		return
	}
	elem := v.(*list.Element)
	q.seq.Remove(elem)
	q.byHandle.Delete(int64(handle.ID()))
}
