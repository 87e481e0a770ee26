package containerproxy

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Proxy is an alternative bus consumer (C8): instead of running the
// agent loop in-process, each inbound message is handed to a
// short-lived container/subprocess that runs a single-shot agent turn
// and reports back over framed stdout, per spec §4.7.
//
// Grounded on the same inbound-consume/outbound-publish shape as the
// in-process agent loop, with the container round-trip itself
// following original_source/src/gateway/ipc.rs's request/response
// contract.
type Proxy struct {
	cfg     Config
	backend spawner
	store   sessions.Store
	bus     *bus.Bus
	logger  *slog.Logger
}

// New resolves cfg.Backend into a concrete spawner up front, so an
// unavailable backend is reported as a configuration error before any
// inbound message is consumed.
func New(cfg Config, store sessions.Store, b *bus.Bus, logger *slog.Logger) (*Proxy, error) {
	backend, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{cfg: cfg, backend: backend, store: store, bus: b, logger: logger}, nil
}

// Run consumes inbound messages until the bus is closed, dispatching
// each to its own container so a slow or stuck agent turn never blocks
// the next inbound message.
func (p *Proxy) Run(ctx context.Context) {
	for {
		msg, err := p.bus.ConsumeInbound()
		if err != nil {
			return
		}
		go p.handle(ctx, msg)
	}
}

func (p *Proxy) handle(ctx context.Context, msg models.InboundMessage) {
	requestID := uuid.NewString()

	session, err := p.store.GetByKey(ctx, msg.SessionKey)
	if err != nil {
		p.logger.Error("containerproxy: session lookup failed", "request_id", requestID, "error", err)
		p.publishError(msg, requestID, "session lookup failed")
		return
	}

	req := AgentRequest{
		RequestID: requestID,
		Message:   msg,
		Session:   session,
	}
	body, err := json.Marshal(req)
	if err != nil {
		p.logger.Error("containerproxy: encode request failed", "request_id", requestID, "error", err)
		p.publishError(msg, requestID, "internal error")
		return
	}

	stdout, err := p.backend.spawn(ctx, p.cfg, string(body)+"\n")
	if err != nil {
		p.logger.Error("containerproxy: spawn failed", "request_id", requestID, "error", err)
		p.publishError(msg, requestID, "agent unavailable")
		return
	}

	resp, ok := ParseMarkedResponse(stdout)
	if !ok {
		p.logger.Error("containerproxy: no framed response in container output", "request_id", requestID)
		p.publishError(msg, requestID, "agent returned no response")
		return
	}

	p.publishResult(msg, resp)
}

func (p *Proxy) publishResult(msg models.InboundMessage, resp AgentResponse) {
	content := "agent returned an empty result"
	switch {
	case resp.Result.Success != nil:
		content = resp.Result.Success.Content
	case resp.Result.Error != nil:
		content = "error: " + resp.Result.Error.Message
	}
	if err := p.bus.PublishOutbound(models.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.UserID,
		Content: content,
	}); err != nil {
		p.logger.Warn("containerproxy: publish outbound failed, bus closed", "request_id", resp.RequestID)
	}
}

func (p *Proxy) publishError(msg models.InboundMessage, requestID, content string) {
	if err := p.bus.PublishOutbound(models.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.UserID,
		Content: content,
	}); err != nil {
		p.logger.Warn("containerproxy: publish error failed, bus closed", "request_id", requestID)
	}
}
