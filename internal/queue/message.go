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

import "time"

// OfflineMessage is one pending PUBLISH held for a disconnected session
// (spec §3.3). Every field except properties, which is re-materialized
// per send, is immutable after construction.
type OfflineMessage struct {
	topic      []byte
	payload    []byte
	options    PublishOptions
	properties PropertySet

	// expiryHandle is present iff Message Expiry Interval was present on
	// ingress. It is owned jointly by this entry and the timer
	// service's fire callback (spec §4.2).
	expiryHandle *ExpiryHandle
}

// NewOfflineMessage constructs an Offline Message. expiryHandle may be nil.
func NewOfflineMessage(topic, payload []byte, options PublishOptions, properties PropertySet, expiryHandle *ExpiryHandle) *OfflineMessage {
	return &OfflineMessage{
		topic:        topic,
		payload:      payload,
		options:      options,
		properties:   properties,
		expiryHandle: expiryHandle,
	}
}

// Topic returns the message's topic.
func (m *OfflineMessage) Topic() []byte { return m.topic }

// Options returns the message's Publish Options.
func (m *OfflineMessage) Options() PublishOptions { return m.options }

// ExpiryHandle returns the message's expiry handle, or nil if the message
// was enqueued without a Message Expiry Interval.
func (m *OfflineMessage) ExpiryHandle() *ExpiryHandle { return m.expiryHandle }

// Send computes the current Message Expiry Interval (if any) from the
// expiry handle, rounding the remaining time up to whole seconds, builds a property set identical to the stored one except
// for that rewritten value, and hands topic/payload/options/properties to
// endpoint.Publish (spec §4.3.1). The stored property set is never
// mutated.
func (m *OfflineMessage) Send(endpoint Endpoint) error {
	outgoing := m.properties
	if m.expiryHandle != nil {
		if _, ok := m.properties.MessageExpiryInterval(); ok {
			remaining := (m.expiryHandle.Remaining() + time.Second - 1) / time.Second
			outgoing = m.properties.WithMessageExpiryInterval(uint32(remaining))
		}
	}
	return endpoint.Publish(m.topic, m.payload, m.options, outgoing)
}
