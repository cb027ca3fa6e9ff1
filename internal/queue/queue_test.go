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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunqi/lighthouse-broker/internal/xerror"
)

// fakeTimerService never actually sleeps: Schedule just records the
// deadline and the onFire callback, so tests can advance a virtual clock
// and fire deterministically instead of racing real wall-clock timers.
type fakeTimerService struct {
	mu    sync.Mutex
	items []*fakeTimerEntry
}

type fakeTimerEntry struct {
	handle *ExpiryHandle
	onFire func(*ExpiryHandle, FireSignal)
}

func newFakeTimerService() *fakeTimerService {
	return &fakeTimerService{}
}

func (f *fakeTimerService) Schedule(d time.Duration, onFire func(*ExpiryHandle, FireSignal)) *ExpiryHandle {
	h := newExpiryHandle(time.Now().Add(d))
	f.mu.Lock()
	f.items = append(f.items, &fakeTimerEntry{handle: h, onFire: onFire})
	f.mu.Unlock()
	return h
}

// fireExpired invokes onFire(handle, FireNormal) for every scheduled
// handle whose deadline has already passed relative to now.
func (f *fakeTimerService) fireExpired(now time.Time) {
	f.mu.Lock()
	items := append([]*fakeTimerEntry(nil), f.items...)
	f.mu.Unlock()

	for _, it := range items {
		if !it.handle.deadline.After(now) {
			it.handle.Cancel()
			it.onFire(it.handle, FireNormal)
		}
	}
}

// fakeEndpoint records every Publish call it receives, in order, and can
// be configured to fail a specific call with a specific error.
type fakeEndpoint struct {
	mu       sync.Mutex
	calls    []string
	failAt   int // 1-based call index to fail, 0 means never
	failWith error
}

func (e *fakeEndpoint) Publish(topic, payload []byte, options PublishOptions, properties PropertySet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := len(e.calls) + 1
	e.calls = append(e.calls, fmt.Sprintf("publish(%s,%s,%d)", topic, payload, options.QoS))
	if e.failAt != 0 && idx == e.failAt {
		return e.failWith
	}
	return nil
}

func (e *fakeEndpoint) log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func TestQueue_EnqueueThenDrainAll_PreservesOrder(t *testing.T) {
	q := NewOfflineMessageQueue()
	q.Enqueue(nil, []byte("a"), []byte("x"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("b"), []byte("y"), PublishOptions{QoS: AtLeastOnce}, NewPropertySet())

	ep := &fakeEndpoint{}
	err := q.DrainAll(ep)
	require.NoError(t, err)

	assert.Equal(t, []string{"publish(a,x,0)", "publish(b,y,1)"}, ep.log())
	assert.True(t, q.IsEmpty())
}

func TestQueue_DrainAll_StopsOnPacketIDExhaustionThenResumes(t *testing.T) {
	q := NewOfflineMessageQueue()
	q.Enqueue(nil, []byte("a"), []byte("x"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("b"), []byte("y"), PublishOptions{QoS: AtLeastOnce}, NewPropertySet())

	ep := &fakeEndpoint{failAt: 2, failWith: xerror.ErrPacketIDExhausted}
	err := q.DrainAll(ep)
	require.NoError(t, err)

	assert.Equal(t, []string{"publish(a,x,0)", "publish(b,y,1)"}, ep.log())
	assert.Equal(t, 1, q.Len())

	ep2 := &fakeEndpoint{}
	err = q.DrainUntilOneIDConsumed(ep2)
	require.NoError(t, err)
	assert.Equal(t, []string{"publish(b,y,1)"}, ep2.log())
	assert.True(t, q.IsEmpty())
}

func TestQueue_DrainAll_PropagatesOtherFailures(t *testing.T) {
	q := NewOfflineMessageQueue()
	q.Enqueue(nil, []byte("a"), []byte("x"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())

	boom := errors.New("boom")
	ep := &fakeEndpoint{failAt: 1, failWith: boom}
	err := q.DrainAll(ep)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DrainUntilOneIDConsumed_DrainsQoS0ThenStopsAtFirstQoSAboveZero(t *testing.T) {
	q := NewOfflineMessageQueue()
	q.Enqueue(nil, []byte("a"), []byte("1"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("b"), []byte("2"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("c"), []byte("3"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("d"), []byte("4"), PublishOptions{QoS: AtLeastOnce}, NewPropertySet())

	ep := &fakeEndpoint{}
	err := q.DrainUntilOneIDConsumed(ep)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"publish(a,1,0)", "publish(b,2,0)", "publish(c,3,0)", "publish(d,4,1)",
	}, ep.log())
	assert.True(t, q.IsEmpty())
}

func TestQueue_MessageExpiryIsRewrittenToRemainingSeconds(t *testing.T) {
	q := NewOfflineMessageQueue()
	timerSvc := newFakeTimerService()

	props := NewPropertySet(Property{ID: MessageExpiryInterval, Value: encodeUint32(t, 10)})
	q.Enqueue(timerSvc, []byte("t"), []byte("p"), PublishOptions{QoS: AtMostOnce}, props)

	var captured PropertySet
	capturing := endpointFunc(func(_, _ []byte, _ PublishOptions, properties PropertySet) error {
		captured = properties
		return nil
	})

	require.NoError(t, q.DrainAll(capturing))

	v, ok := captured.MessageExpiryInterval()
	require.True(t, ok)
	// Drained immediately: well under a second has elapsed and the
	// remaining time is rounded up to whole seconds, so the rewritten
	// value is 10 (9 only if the run took longer than a second).
	assert.LessOrEqual(t, uint32(9), v)
	assert.LessOrEqual(t, v, uint32(10))
}

func TestQueue_MessageExpiryAtThreeSecondsCarriesSevenRemaining(t *testing.T) {
	// Spec §8 seed 3: enqueued with a 10s Message Expiry Interval at
	// time 0, drained at time 3s, must carry 7.
	q := NewOfflineMessageQueue()
	props := NewPropertySet(Property{ID: MessageExpiryInterval, Value: encodeUint32(t, 10)})

	// A handle whose deadline is already 3s into its original 10s
	// window models "drained at t=3s" without an actual 3s sleep.
	handle := newExpiryHandle(time.Now().Add(7 * time.Second))
	msg := NewOfflineMessage([]byte("t"), []byte("p"), PublishOptions{QoS: AtMostOnce}, props, handle)
	q.seq.PushBack(msg)

	var captured PropertySet
	require.NoError(t, q.DrainAll(endpointFunc(func(_, _ []byte, _ PublishOptions, properties PropertySet) error {
		captured = properties
		return nil
	})))

	v, ok := captured.MessageExpiryInterval()
	require.True(t, ok)
	assert.EqualValues(t, 7, v)
}

func TestQueue_ExpiryFireRemovesEntry(t *testing.T) {
	q := NewOfflineMessageQueue()
	timerSvc := newFakeTimerService()

	props := NewPropertySet(Property{ID: MessageExpiryInterval, Value: encodeUint32(t, 5)})
	q.Enqueue(timerSvc, []byte("t"), []byte("p"), PublishOptions{QoS: AtMostOnce}, props)
	assert.False(t, q.IsEmpty())

	timerSvc.fireExpired(time.Now().Add(6 * time.Second))
	assert.True(t, q.IsEmpty())
}

func TestQueue_Clear_EmptiesQueueAndCancelsTimers(t *testing.T) {
	q := NewOfflineMessageQueue()
	timerSvc := newFakeTimerService()

	props := NewPropertySet(Property{ID: MessageExpiryInterval, Value: encodeUint32(t, 5)})
	q.Enqueue(timerSvc, []byte("t"), []byte("p"), PublishOptions{QoS: AtMostOnce}, props)
	q.Clear()
	assert.True(t, q.IsEmpty())

	// A fire arriving after Clear must have no observable effect: the
	// fake still delivers FireNormal, but Clear dropped the handle from
	// the secondary view, so onExpire finds no entry and does nothing.
	timerSvc.fireExpired(time.Now().Add(10 * time.Second))
	assert.True(t, q.IsEmpty())
}

func TestQueue_OnExpire_CancellationSignalIsNoOpEvenWhenEntryStillPresent(t *testing.T) {
	q := NewOfflineMessageQueue()
	timerSvc := newFakeTimerService()

	props := NewPropertySet(Property{ID: MessageExpiryInterval, Value: encodeUint32(t, 5)})
	q.Enqueue(timerSvc, []byte("t"), []byte("p"), PublishOptions{QoS: AtMostOnce}, props)
	require.Equal(t, 1, q.Len())

	handle := q.seq.Front().Value.(*OfflineMessage).ExpiryHandle()
	q.onExpire(handle, FireCancelled)

	assert.Equal(t, 1, q.Len(), "a cancellation signal must never remove an entry")
}

func TestQueue_OnExpire_CancellationSignalIsNoOpOnMissingEntry(t *testing.T) {
	q := NewOfflineMessageQueue()
	handle := newExpiryHandle(time.Now())

	assert.NotPanics(t, func() { q.onExpire(handle, FireCancelled) })
	assert.True(t, q.IsEmpty())
}

func TestQueue_NoDeduplication(t *testing.T) {
	q := NewOfflineMessageQueue()
	q.Enqueue(nil, []byte("a"), []byte("x"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	q.Enqueue(nil, []byte("a"), []byte("x"), PublishOptions{QoS: AtMostOnce}, NewPropertySet())
	assert.Equal(t, 2, q.Len())
}

// endpointFunc adapts a function literal to the Endpoint interface for
// tests that only need to capture arguments, not track a call log.
type endpointFunc func(topic, payload []byte, options PublishOptions, properties PropertySet) error

func (f endpointFunc) Publish(topic, payload []byte, options PublishOptions, properties PropertySet) error {
	return f(topic, payload, options, properties)
}
