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

package queue

import (
	"sync/atomic"
	"time"

	"github.com/yunqi/lighthouse-broker/internal/goroutine"
)

// FireSignal tells a timer-fire callback whether the deadline genuinely
// elapsed or whether the fire was synthesized for an already-cancelled
// handle (spec §4.2, "Firing").
type FireSignal int

const (
	// FireNormal means the deadline elapsed.
	FireNormal FireSignal = iota
	// FireCancelled means the callback is being notified of a handle
	// that was cancelled; it must be a no-op (spec §7).
	FireCancelled
)

// TimerService is the shared collaborator the queue schedules expiry
// deadlines against (spec §6, "timer service surface consumed"). A single
// TimerService instance is shared by every session's queue; only the
// callback registered for a given handle ever touches that handle's
// owning queue.
type TimerService interface {
	// Schedule arranges for onFire to run, on a goroutine of the
	// implementation's choosing, no earlier than d from now. onFire is called
	// at most once, and is always passed the handle Schedule returns —
	// onFire must never close over that return value itself, since the
	// fire can race the assignment of Schedule's result for a zero or
	// very small d.
	Schedule(d time.Duration, onFire func(*ExpiryHandle, FireSignal)) *ExpiryHandle
}

var nextHandleID uint64

// ExpiryHandle is a scoped handle over one pending expiry deadline (spec
// §4.2). Two handles are the same deadline iff they are the same *ExpiryHandle
// pointer; id exists only so the queue's secondary view (internal/queue's
// handle-identity index) has a comparable, hashable key independent of the
// handle's concrete type, matching the arena-index approach design notes
// §9 recommends over a shared, reference-counted timer object.
type ExpiryHandle struct {
	id        uint64
	deadline  time.Time
	timer     *time.Timer
	onFire    func(*ExpiryHandle, FireSignal)
	cancelled int32
}

func newExpiryHandle(deadline time.Time) *ExpiryHandle {
	return &ExpiryHandle{id: atomic.AddUint64(&nextHandleID, 1), deadline: deadline}
}

// NewExpiryHandle exposes handle construction to test doubles (e.g. a
// gomock TimerService) that need to return a real *ExpiryHandle without
// driving an actual timer.
func NewExpiryHandle(deadline time.Time) *ExpiryHandle {
	return newExpiryHandle(deadline)
}

// ID returns the handle's identity key, used by the queue's secondary view.
func (h *ExpiryHandle) ID() uint64 { return h.id }

// Remaining returns the non-negative duration until the deadline. A
// deadline in the past returns 0.
func (h *ExpiryHandle) Remaining() time.Duration {
	d := time.Until(h.deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Cancel stops the pending timer and notifies onFire with FireCancelled,
// unless the deadline already won the race and fired with FireNormal
// first. It is idempotent and safe to call after the timer has already
// fired (spec §4.2, "shared ownership model").
func (h *ExpiryHandle) Cancel() {
	if !atomic.CompareAndSwapInt32(&h.cancelled, 0, 1) {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.onFire != nil {
		onFire, handle := h.onFire, h
		goroutine.Go(func() {
			onFire(handle, FireCancelled)
		})
	}
}

// DefaultTimerService schedules deadlines with time.AfterFunc and
// dispatches fire callbacks onto the shared goroutine pool. The pool has
// many workers; the queue's own mutex is what serializes a fire callback
// against enqueue/drain/clear (spec §5).
type DefaultTimerService struct{}

// NewTimerService returns the production TimerService.
func NewTimerService() *DefaultTimerService {
	return &DefaultTimerService{}
}

func (s *DefaultTimerService) Schedule(d time.Duration, onFire func(*ExpiryHandle, FireSignal)) *ExpiryHandle {
	h := newExpiryHandle(time.Now().Add(d))
	h.onFire = onFire
	h.timer = time.AfterFunc(d, func() {
		if !atomic.CompareAndSwapInt32(&h.cancelled, 0, 1) {
			// Already cancelled: Cancel() raced the deadline and won
			// ownership first. No-op, per spec §4.2.
			return
		}
		goroutine.Go(func() {
			onFire(h, FireNormal)
		})
	})
	return h
}
