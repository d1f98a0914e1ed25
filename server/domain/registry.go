package domain

import (
	"sync"
	"time"
)

// registryImpl shards its state by booking code: the top-level lock only
// guards the two maps, each booking entry carries its own lock so fan-out on
// one booking never contends with lifecycle churn on another.
type registryImpl struct {
	mu       sync.RWMutex
	bookings map[string]*bookingEntry
	conns    map[string]*registeredConn
}

type bookingEntry struct {
	mu    sync.RWMutex
	conns map[string]*registeredConn
}

type registeredConn struct {
	handle ConnectionHandle
	sink   EventSink
}

func NewConnectionRegistry() ConnectionRegistry {
	return &registryImpl{
		bookings: make(map[string]*bookingEntry),
		conns:    make(map[string]*registeredConn),
	}
}

func (r *registryImpl) Register(bookingCode string, role Role, connID string, sink EventSink) {
	rc := &registeredConn{
		handle: ConnectionHandle{
			ID:           connID,
			BookingCode:  bookingCode,
			Role:         role,
			RegisteredAt: time.Now(),
		},
		sink: sink,
	}

	r.mu.Lock()
	if prev, ok := r.conns[connID]; ok && prev.handle.BookingCode != bookingCode {
		// Rebind: drop the stale booking membership first.
		if entry, ok := r.bookings[prev.handle.BookingCode]; ok {
			entry.mu.Lock()
			delete(entry.conns, connID)
			empty := len(entry.conns) == 0
			entry.mu.Unlock()
			if empty {
				delete(r.bookings, prev.handle.BookingCode)
			}
		}
	}
	entry, ok := r.bookings[bookingCode]
	if !ok {
		entry = &bookingEntry{conns: make(map[string]*registeredConn)}
		r.bookings[bookingCode] = entry
	}
	r.conns[connID] = rc
	// The entry insert stays under r.mu: a concurrent Deregister of the
	// booking's last other connection would otherwise remove the entry from
	// r.bookings between the two locks and leave this connection invisible
	// to fan-out.
	entry.mu.Lock()
	entry.conns[connID] = rc
	entry.mu.Unlock()
	r.mu.Unlock()
}

func (r *registryImpl) Deregister(connID string) {
	r.mu.Lock()
	rc, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	entry, hasEntry := r.bookings[rc.handle.BookingCode]
	if hasEntry {
		entry.mu.Lock()
		delete(entry.conns, connID)
		empty := len(entry.conns) == 0
		entry.mu.Unlock()
		if empty {
			delete(r.bookings, rc.handle.BookingCode)
		}
	}
	r.mu.Unlock()
}

func (r *registryImpl) List(bookingCode string) []ConnectionHandle {
	subs := r.Subscribers(bookingCode)
	handles := make([]ConnectionHandle, 0, len(subs))
	for _, s := range subs {
		handles = append(handles, s.Handle)
	}
	return handles
}

func (r *registryImpl) ListExcluding(bookingCode string, role Role) []ConnectionHandle {
	subs := r.Subscribers(bookingCode)
	handles := make([]ConnectionHandle, 0, len(subs))
	for _, s := range subs {
		if s.Handle.Role == role {
			continue
		}
		handles = append(handles, s.Handle)
	}
	return handles
}

func (r *registryImpl) Subscribers(bookingCode string) []Subscriber {
	r.mu.RLock()
	entry, ok := r.bookings[bookingCode]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	subs := make([]Subscriber, 0, len(entry.conns))
	for _, rc := range entry.conns {
		subs = append(subs, Subscriber{Handle: rc.handle, Sink: rc.sink})
	}
	return subs
}

func (r *registryImpl) ActiveConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *registryImpl) ActiveBookings() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bookings)
}
