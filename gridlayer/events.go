/*
Copyright © 2026 the geogrid authors.
This file is part of geogrid.

geogrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geogrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geogrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridlayer

import (
	"fmt"
	"sync"

	"github.com/spatialmodel/geogrid"
)

// EventKind identifies the type of an Event.
type EventKind int

// Kinds of events.
const (
	// Busy is sent when a background recompute starts.
	Busy EventKind = iota
	// Idle is sent when the background worker runs out of work.
	Idle
	// ResultUpdated is sent when a file receives a new result or
	// loses its result. Result is nil in the latter case.
	ResultUpdated
	// StyleUpdated is sent when the colors of a result change.
	StyleUpdated
)

func (k EventKind) String() string {
	switch k {
	case Busy:
		return "busy"
	case Idle:
		return "idle"
	case ResultUpdated:
		return "result updated"
	case StyleUpdated:
		return "style updated"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification about a change in a Layer.
type Event struct {
	Kind   EventKind
	File   string
	Result *geogrid.GriddingResult
}

// eventBuffer is the number of events a subscriber can fall behind
// before events are dropped.
const eventBuffer = 64

type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	c := make(chan Event, eventBuffer)
	b.subs[id] = c
	return c, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// publish sends e to every subscriber without blocking.
func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subs {
		select {
		case c <- e:
		default:
		}
	}
}
