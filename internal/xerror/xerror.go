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

// Package xerror collects the sentinel errors shared across the broker's
// internal packages.
package xerror

import "errors"

// ErrPacketIDExhausted is returned by an Endpoint when it has no packet
// identifiers left to assign to a QoS>0 publish. It is the sole
// backpressure signal the offline queue honors (spec §5, §7).
var ErrPacketIDExhausted = errors.New("xerror: packet identifier exhausted")
