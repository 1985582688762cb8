// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package orchestration

import (
	"sync"

	"github.com/querymesh/loomquery/internal/pubsub"
	"github.com/querymesh/loomquery/pkg/types"
)

// Monitor fans out types.ProgressEvent publications to subscribers of one
// request id, backing the streaming query endpoint. Events for a subscriber
// whose channel buffer is full are dropped silently on Publish rather than
// blocking the orchestrator — the HTTP handler is expected to keep up.
type Monitor struct {
	mu   sync.Mutex
	subs map[string][]chan pubsub.Event[types.ProgressEvent]
}

func NewMonitor() *Monitor {
	return &Monitor{subs: make(map[string][]chan pubsub.Event[types.ProgressEvent])}
}

// Subscribe returns a channel of events for requestID and an unsubscribe
// function the caller must invoke when done listening.
func (m *Monitor) Subscribe(requestID string) (<-chan pubsub.Event[types.ProgressEvent], func()) {
	ch := make(chan pubsub.Event[types.ProgressEvent], 16)

	m.mu.Lock()
	m.subs[requestID] = append(m.subs[requestID], ch)
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.subs[requestID]
		for i, c := range list {
			if c == ch {
				m.subs[requestID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(m.subs[requestID]) == 0 {
			delete(m.subs, requestID)
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Publish delivers event to every current subscriber of event.RequestID,
// dropping it for any subscriber whose buffer is full.
func (m *Monitor) Publish(event types.ProgressEvent) {
	m.mu.Lock()
	subs := append([]chan pubsub.Event[types.ProgressEvent]{}, m.subs[event.RequestID]...)
	m.mu.Unlock()

	wrapped := pubsub.NewUpdatedEvent(event)
	for _, ch := range subs {
		select {
		case ch <- wrapped:
		default:
		}
	}
}

// Callback returns a types.ProgressCallback bound to this monitor, suitable
// for passing into the orchestrator's per-request Run call.
func (m *Monitor) Callback() types.ProgressCallback {
	return m.Publish
}
