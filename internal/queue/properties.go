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
	"bytes"

	"github.com/yunqi/lighthouse-broker/internal/binary"
)

// PropertyID identifies one MQTT-v5 property. Only MessageExpiryInterval
// carries semantic meaning for the offline queue (spec §3.2); every other
// ID is opaque and is carried through verbatim.
type PropertyID uint8

// MessageExpiryInterval is the only property this package inspects.
// The remaining IDs below match the MQTT-v5 property identifier space and
// are listed so callers can build a realistic PropertySet in tests without
// inventing numbers; the queue itself never switches on them.
const (
	PayloadFormatIndicator PropertyID = 1
	MessageExpiryInterval  PropertyID = 2
	ContentType            PropertyID = 3
	ResponseTopic          PropertyID = 8
	CorrelationData        PropertyID = 9
	UserProperty           PropertyID = 38
)

// Property is one ordered, typed entry in a PropertySet. Value holds the
// property's wire-encoded bytes; the queue never needs to know the
// encoding of any property except MessageExpiryInterval's four-byte
// unsigned integer.
type Property struct {
	ID    PropertyID
	Value []byte
}

// PropertySet is an ordered, immutable-by-convention list of Properties.
// Callers must treat a PropertySet as copy-on-write: Clone before
// mutating, never mutate a PropertySet stored inside an OfflineMessage.
type PropertySet struct {
	props []Property
}

// NewPropertySet builds a PropertySet from the given properties, in order.
func NewPropertySet(props ...Property) PropertySet {
	return PropertySet{props: append([]Property(nil), props...)}
}

// Len reports the number of properties in the set.
func (p PropertySet) Len() int {
	return len(p.props)
}

// MessageExpiryInterval returns the seconds value of the
// MessageExpiryInterval property, if present.
func (p PropertySet) MessageExpiryInterval() (uint32, bool) {
	for _, prop := range p.props {
		if prop.ID == MessageExpiryInterval {
			v, err := binary.ReadUint32(bytes.NewReader(prop.Value))
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

// Clone returns a deep copy: the returned PropertySet shares no backing
// array with p, so mutating it (e.g. via WithMessageExpiryInterval) never
// touches the original.
func (p PropertySet) Clone() PropertySet {
	out := make([]Property, len(p.props))
	for i, prop := range p.props {
		out[i] = Property{ID: prop.ID, Value: append([]byte(nil), prop.Value...)}
	}
	return PropertySet{props: out}
}

// WithMessageExpiryInterval returns a clone of p with the
// MessageExpiryInterval property rewritten to seconds (or appended if
// absent). p itself is never mutated (design notes §9, "property rewrite
// on send").
func (p PropertySet) WithMessageExpiryInterval(seconds uint32) PropertySet {
	clone := p.Clone()
	buf := &bytes.Buffer{}
	_ = binary.WriteUint32(buf, seconds)
	encoded := buf.Bytes()

	for i, prop := range clone.props {
		if prop.ID == MessageExpiryInterval {
			clone.props[i].Value = encoded
			return clone
		}
	}
	clone.props = append(clone.props, Property{ID: MessageExpiryInterval, Value: encoded})
	return clone
}

// Each iterates the properties in order. Mutating the yielded Property's
// Value slice in place is undefined behavior; Each is read-only access.
func (p PropertySet) Each(fn func(Property)) {
	for _, prop := range p.props {
		fn(prop)
	}
}
