package domain

import "log/slog"

// Delivery is the per-connection outcome of one publish.
type Delivery struct {
	ConnectionID string
	Err          error
}

// DeliveryReport collects the outcome of a single publish. At-most-once: a
// failed connection is reported, never retried here; the transport layer
// decides whether to drop it.
type DeliveryReport struct {
	Deliveries []Delivery
}

func (r DeliveryReport) OK() bool {
	for _, d := range r.Deliveries {
		if d.Err != nil {
			return false
		}
	}
	return true
}

// Failed returns the deliveries that did not reach their connection.
func (r DeliveryReport) Failed() []Delivery {
	var failed []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

type broadcasterImpl struct {
	registry ConnectionRegistry
	logger   *slog.Logger
}

func NewBroadcaster(registry ConnectionRegistry, logger *slog.Logger) Broadcaster {
	return &broadcasterImpl{registry: registry, logger: logger}
}

func (b *broadcasterImpl) Publish(bookingCode string, ev Event, excludeConnID string) DeliveryReport {
	return b.deliver(bookingCode, ev, func(h ConnectionHandle) bool {
		return h.ID != excludeConnID
	})
}

func (b *broadcasterImpl) PublishToRole(bookingCode string, role Role, ev Event) DeliveryReport {
	return b.deliver(bookingCode, ev, func(h ConnectionHandle) bool {
		return h.Role == role
	})
}

func (b *broadcasterImpl) deliver(bookingCode string, ev Event, want func(ConnectionHandle) bool) DeliveryReport {
	var report DeliveryReport
	for _, sub := range b.registry.Subscribers(bookingCode) {
		if !want(sub.Handle) {
			continue
		}
		err := sub.Sink.Send(ev)
		if err != nil {
			b.logger.Warn("delivery failed",
				"booking_code", bookingCode,
				"connection_id", sub.Handle.ID,
				"event_type", ev.Type,
				"error", err)
		}
		report.Deliveries = append(report.Deliveries, Delivery{ConnectionID: sub.Handle.ID, Err: err})
	}
	return report
}
