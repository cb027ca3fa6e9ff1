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

// Endpoint is the downstream collaborator a drain replays Offline
// Messages against (spec §6, "downstream (endpoint) surface consumed").
// Transport framing, TLS, and wire encoding of the PUBLISH packet are all
// the endpoint's concern; the queue only needs the ability to hand it a
// topic/payload/options/properties tuple and learn whether the send
// succeeded.
type Endpoint interface {
	// Publish delivers one message. If the endpoint has no packet
	// identifiers left to assign to a QoS>0 publish it must return
	// xerror.ErrPacketIDExhausted; any other failure is returned
	// unchanged and propagated to the queue's caller.
	Publish(topic []byte, payload []byte, options PublishOptions, properties PropertySet) error
}
