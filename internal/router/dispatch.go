// NATS capability dispatch: lets an external worker process pick up
// queued LLM requests over the wire instead of in-process HTTP calls,
// for deployments that run model workers on separate machines (§6
// "LLM provider protocol" allows either in-process or networked
// dispatch). Adapted from the teacher's nats/event_listener.go single
// "spatial.command.move" subscription, generalized to one subject per
// capability keyed "simcore.capability.<name>".
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "simcore.capability."

// NATSProvider dispatches Invoke calls as NATS request/reply messages,
// satisfying the Provider interface for a remote worker pool.
type NATSProvider struct {
	name string
	nc   *nats.Conn
}

func NewNATSProvider(name string, nc *nats.Conn) *NATSProvider {
	return &NATSProvider{name: name, nc: nc}
}

func (p *NATSProvider) Name() string { return p.name }

func (p *NATSProvider) Invoke(ctx context.Context, capability string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("router: encode nats payload: %w", err)
	}
	deadline, ok := ctx.Deadline()
	timeout := 30 * time.Second
	if ok {
		timeout = time.Until(deadline)
	}
	msg, err := p.nc.RequestWithContext(ctx, natsSubjectPrefix+capability, body)
	if err != nil {
		return nil, fmt.Errorf("router: nats request %s (timeout %s): %w", capability, timeout, err)
	}
	return json.RawMessage(msg.Data), nil
}

// NATSWorker subscribes to a capability subject and hands requests to a
// local handler, replying with its result. Mirrors the teacher's
// EventListener.ListenForMove subscribe-unmarshal-dispatch shape.
type NATSWorker struct {
	nc      *nats.Conn
	handler func(ctx context.Context, capability string, payload json.RawMessage) (json.RawMessage, error)
}

func NewNATSWorker(nc *nats.Conn, handler func(ctx context.Context, capability string, payload json.RawMessage) (json.RawMessage, error)) *NATSWorker {
	return &NATSWorker{nc: nc, handler: handler}
}

// Listen subscribes to the given capability's subject and processes
// requests until the connection is closed.
func (w *NATSWorker) Listen(capability string) error {
	subject := natsSubjectPrefix + capability
	_, err := w.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := w.handler(ctx, capability, json.RawMessage(msg.Data))
		if err != nil {
			errPayload, _ := json.Marshal(map[string]string{"error": err.Error()})
			_ = msg.Respond(errPayload)
			return
		}
		_ = msg.Respond(result)
	})
	if err != nil {
		return fmt.Errorf("router: subscribe to %s failed: %w", subject, err)
	}
	return nil
}
