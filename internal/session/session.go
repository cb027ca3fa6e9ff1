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

// Package session owns the lifecycle the offline queue is scoped to: a
// Record per retained client identity, created when a clean_start=false
// session first goes offline and destroyed on session-takeover with
// clean_start=true or by an explicit Manager.Destroy (spec §3.4,
// "Lifecycle"). Records do not expire on their own: nothing in this
// package acts on config.Mqtt.SessionExpiry.
//
// Subscription matching, retained-message handling, and the transport
// handshake that creates a session record in the first place are all
// explicitly out of scope for this repository (spec §1); Manager only
// plays the minimal role of "who calls enqueue/drain/clear", which the
// offline queue itself needs a caller for.
package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse-broker/config"
	"github.com/yunqi/lighthouse-broker/internal/queue"
	"github.com/yunqi/lighthouse-broker/internal/xlog"
	"github.com/yunqi/lighthouse-broker/internal/xtrace"
)

// Record is the per-client-identity state that owns one offline message
// queue. It is the "session record" spec §3.4 refers to as the queue's
// owner.
type Record struct {
	clientID     string
	timerService queue.TimerService
	queue        *queue.OfflineMessageQueue

	maxQueueMessages int
	queueQoS0        bool

	log    *xlog.Log
	tracer trace.Tracer
}

func newRecord(clientID string, timerService queue.TimerService, cfg *config.Mqtt) *Record {
	return &Record{
		clientID:         clientID,
		timerService:     timerService,
		queue:            queue.NewOfflineMessageQueue(),
		maxQueueMessages: cfg.MaxQueueMessages,
		queueQoS0:        cfg.QueueQos0Msg,
		log:              xlog.LoggerModule("session"),
		tracer:           otel.GetTracerProvider().Tracer(xtrace.Name),
	}
}

// ClientID returns the identity this record belongs to.
func (r *Record) ClientID() string { return r.clientID }

// Enqueue stores a publish for later replay (spec §4.4.1), honoring the
// broker's QueueQos0Msg and MaxQueueMessages config knobs, which spec §3.4
// leaves to "the caller" to enforce.
func (r *Record) Enqueue(ctx context.Context, topic, payload []byte, options queue.PublishOptions, properties queue.PropertySet) {
	_, span := r.tracer.Start(ctx, "session.Enqueue")
	defer span.End()

	if options.QoS == queue.AtMostOnce && !r.queueQoS0 {
		return
	}
	if r.maxQueueMessages > 0 && r.queue.Len() >= r.maxQueueMessages {
		r.log.Warn("offline queue full, dropping publish",
			zap.String("client_id", r.clientID), zap.Int("max_queue_messages", r.maxQueueMessages))
		return
	}
	r.queue.Enqueue(r.timerService, topic, payload, options, properties)
}

// Reconnect replays the queue against the newly (re)connected endpoint
// (spec §4.4.2). It returns nil even when the endpoint paused on
// packet-identifier exhaustion; PacketIDFreed resumes that case.
func (r *Record) Reconnect(ctx context.Context, endpoint queue.Endpoint) error {
	_, span := r.tracer.Start(ctx, "session.Reconnect")
	defer span.End()
	return r.queue.DrainAll(endpoint)
}

// PacketIDFreed resumes a paused drain after the endpoint reports one
// packet identifier became available (spec §4.4.3).
func (r *Record) PacketIDFreed(ctx context.Context, endpoint queue.Endpoint) error {
	_, span := r.tracer.Start(ctx, "session.PacketIDFreed")
	defer span.End()
	return r.queue.DrainUntilOneIDConsumed(endpoint)
}

// IsEmpty reports whether the owned queue currently holds no entries.
func (r *Record) IsEmpty() bool { return r.queue.IsEmpty() }

// Clear destroys the owned queue's entries and cancels their timers
// (spec §4.4.4). Called on session takeover with clean_start=true.
func (r *Record) Clear() { r.queue.Clear() }

// Manager creates, looks up, and destroys session Records, keyed by
// client identity. Exactly one Record exists per retained client
// identity at a time (spec §3.4, "owned by exactly one session").
type Manager struct {
	mu           sync.Mutex
	records      map[string]*Record
	timerService queue.TimerService
	cfg          *config.Mqtt
	log          *xlog.Log
}

// NewManager returns a Manager backed by the given shared TimerService
// and broker config.
func NewManager(cfg *config.Mqtt, timerService queue.TimerService) *Manager {
	return &Manager{
		records:      make(map[string]*Record),
		timerService: timerService,
		cfg:          cfg,
		log:          xlog.LoggerModule("session.manager"),
	}
}

// GetOrCreate returns the existing Record for clientID, or creates one
// for a session that is persisting across a disconnect for the first
// time (spec §3.4, "Lifecycle").
func (m *Manager) GetOrCreate(clientID string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[clientID]; ok {
		return r
	}
	r := newRecord(clientID, m.timerService, m.cfg)
	m.records[clientID] = r
	return r
}

// Lookup returns the existing Record for clientID, if any.
func (m *Manager) Lookup(clientID string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[clientID]
	return r, ok
}

// TakeOver returns the Record for a (re)connecting client. If cleanStart
// is true and a prior record exists, it is cleared and destroyed first,
// matching "destroyed ... on explicit clear on session takeover with
// clean_start=true" (spec §3.4).
func (m *Manager) TakeOver(clientID string, cleanStart bool) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cleanStart {
		if old, ok := m.records[clientID]; ok {
			old.Clear()
			delete(m.records, clientID)
		}
	}
	if r, ok := m.records[clientID]; ok {
		return r
	}
	r := newRecord(clientID, m.timerService, m.cfg)
	m.records[clientID] = r
	return r
}

// Destroy tears down and forgets the Record for clientID, if any.
func (m *Manager) Destroy(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[clientID]; ok {
		r.Clear()
		delete(m.records, clientID)
	}
}
