package domain

// ConnectionRegistry tracks live connections per booking. Mutations are
// atomic with respect to concurrent reads; independent bookings never block
// on each other.
type ConnectionRegistry interface {
	// Register binds a connection to a booking and role. Re-registering the
	// same connection id rebinds it instead of erroring.
	Register(bookingCode string, role Role, connID string, sink EventSink)

	// Deregister is a no-op for unknown ids; disconnect races are expected.
	Deregister(connID string)

	// List returns a point-in-time snapshot. Entries may go stale immediately.
	List(bookingCode string) []ConnectionHandle

	// ListExcluding filters out connections held by the given role, for
	// deliveries that should not echo back to the sender's side.
	ListExcluding(bookingCode string, role Role) []ConnectionHandle

	// Subscribers exposes handles with their sinks for broadcast fan-out.
	Subscribers(bookingCode string) []Subscriber

	// ActiveConnections and ActiveBookings report registry-wide counters.
	ActiveConnections() int
	ActiveBookings() int
}

// Broadcaster delivers an event to every registered connection of a booking,
// at most once per publish, isolating per-connection failures.
type Broadcaster interface {
	Publish(bookingCode string, ev Event, excludeConnID string) DeliveryReport
	PublishToRole(bookingCode string, role Role, ev Event) DeliveryReport
}

// CallSink receives a faithful snapshot of every applied call transition. No
// validation happens here; the machine alone decides legality.
type CallSink interface {
	RecordCall(bookingCode string, rec CallRecord) error
}

// CallMessenger appends a call event to the booking's chat history so pull
// readers observe the same timeline as push subscribers.
type CallMessenger interface {
	AppendCallEvent(bookingCode string, body string)
}
