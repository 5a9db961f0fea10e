package websocket

import (
	"fmt"
	"log/slog"
	"time"
)

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	Event     EventType
	Targets   int
	Delivered int
	Failed    int
}

// Router resolves audiences against the registry and delivers frames.
// A failing handle never stops delivery to the others.
type Router struct {
	registry *Registry
	metrics  *Metrics
}

func NewRouter(registry *Registry, metrics *Metrics) *Router {
	return &Router{registry: registry, metrics: metrics}
}

// Dispatch sends to every live handle in audience, the sender's included.
func (r *Router) Dispatch(audience []UserID, event EventType, payload any) DeliveryReport {
	return r.deliver(event, payload, r.registry.Resolve(audience))
}

// DispatchExcept sends to the audience minus the except handle.
func (r *Router) DispatchExcept(audience []UserID, except Handle, event EventType, payload any) DeliveryReport {
	return r.deliver(event, payload, without(r.registry.Resolve(audience), except))
}

// Broadcast sends to every registered handle except one.
func (r *Router) Broadcast(except Handle, event EventType, payload any) DeliveryReport {
	return r.deliver(event, payload, without(r.registry.Handles(), except))
}

// SendTo delivers to a single handle regardless of registration.
func (r *Router) SendTo(h Handle, event EventType, payload any) error {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return safeSend(h, frame)
}

func (r *Router) deliver(event EventType, payload any, handles []Handle) DeliveryReport {
	report := DeliveryReport{Event: event, Targets: len(handles)}
	if len(handles) == 0 {
		return report
	}

	frame, err := EncodeFrame(event, payload)
	if err != nil {
		slog.Error("Failed to encode frame", "event", event, "error", err)
		report.Failed = len(handles)
		return report
	}

	start := time.Now()
	for _, h := range handles {
		if err := safeSend(h, frame); err != nil {
			report.Failed++
			slog.Debug("Delivery failed", "event", event, "clientID", h.ID(), "userID", h.UserID(), "error", err)
			continue
		}
		report.Delivered++
	}

	if r.metrics != nil {
		r.metrics.RecordDispatch(DispatchMetric{
			Event:     event,
			Targets:   report.Targets,
			Delivered: report.Delivered,
			Failed:    report.Failed,
			Duration:  time.Since(start),
			Timestamp: start,
		})
	}
	return report
}

func safeSend(h Handle, frame []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("send panicked: %v", rec)
		}
	}()
	return h.Send(frame)
}

func without(handles []Handle, except Handle) []Handle {
	if except == nil {
		return handles
	}
	out := handles[:0]
	for _, h := range handles {
		if h.ID() != except.ID() {
			out = append(out, h)
		}
	}
	return out
}
