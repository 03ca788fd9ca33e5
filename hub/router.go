package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/draftwire/draftwire/audit"
	"github.com/draftwire/draftwire/design"
	"github.com/draftwire/draftwire/store"
)

// Inbound events.
const (
	eventGenerateDesign = "generate-design"
	eventModifyDesign   = "modify-design"
	eventFigmaConnect   = "figma-connect"
	eventFigmaRequest   = "figma-request-design"
)

// Outbound events.
const (
	eventAITyping        = "ai-typing"
	eventDesignGenerated = "design-generated"
	eventDesignModified  = "design-modified"
	eventDesignError     = "design-error"
	eventFigmaUpdate     = "figma-update"
	eventFigmaConnected  = "figma-connected"
	eventFigmaDesignData = "figma-design-data"
	eventFigmaError      = "figma-error"
)

// User-safe messages. Raw error detail stays in server logs.
const (
	msgGenerateFailed = "Sorry, I encountered an error while generating your design. Please try again."
	msgModifyFailed   = "Sorry, I encountered an error while modifying your design. Please try again."
	msgNotFound       = "Original design not found."
)

type generateRequest struct {
	Prompt     string `json:"prompt"`
	DesignType string `json:"designType"`
	SessionID  string `json:"sessionId"`
}

type modifyRequest struct {
	DesignID     string `json:"designId"`
	Modification string `json:"modification"`
	Prompt       string `json:"prompt"`
}

type fetchRequest struct {
	DesignID string `json:"designId"`
}

type typingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type resultPayload struct {
	Success bool                  `json:"success"`
	Design  *design.Specification `json:"design"`
	Message string                `json:"message"`
}

type errorPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type updatePayload struct {
	Type   string                `json:"type"`
	Design *design.Specification `json:"design"`
}

type designPayload struct {
	Design *design.Specification `json:"design"`
}

type ackPayload struct {
	Success bool `json:"success"`
}

// Generator is the slice of the generation service the router needs.
type Generator interface {
	Generate(ctx context.Context, userText, designType string) (*design.Specification, error)
	Modify(ctx context.Context, prior *design.Specification, editText, label string) (*design.Specification, error)
}

// Router dispatches protocol envelopes. It is state-free: all state lives
// in the store and the hub.
type Router struct {
	store  *store.Store
	gen    Generator
	hub    *Hub
	events *audit.EventLogger
	logger *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets a custom logger for the router.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithAudit attaches a server-side event logger. Nil is fine; audit is
// never on the request path.
func WithAudit(events *audit.EventLogger) RouterOption {
	return func(r *Router) { r.events = events }
}

// NewRouter creates a Router over the injected store, generator and hub.
func NewRouter(st *store.Store, gen Generator, h *Hub, opts ...RouterOption) *Router {
	r := &Router{
		store:  st,
		gen:    gen,
		hub:    h,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle processes one envelope from a client. Failures never propagate:
// every outcome is an emitted event, so a bad request cannot take down the
// connection, the store, or other clients.
func (r *Router) Handle(ctx context.Context, c Conn, env Envelope) {
	switch env.Event {
	case eventGenerateDesign:
		r.handleGenerate(ctx, c, env.Data)
	case eventModifyDesign:
		r.handleModify(ctx, c, env.Data)
	case eventFigmaConnect:
		r.handleFigmaConnect(c, env.Data)
	case eventFigmaRequest:
		r.handleFigmaRequest(c, env.Data)
	default:
		r.logger.Warn("unknown event", "client", c.ID(), "event", env.Event)
	}
}

func (r *Router) handleGenerate(ctx context.Context, c Conn, data json.RawMessage) {
	var req generateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Prompt == "" {
		r.emitError(c, "A prompt is required to generate a design.")
		return
	}

	c.Emit(eventAITyping, typingPayload{IsTyping: true})
	spec, err := r.gen.Generate(ctx, req.Prompt, req.DesignType)
	c.Emit(eventAITyping, typingPayload{IsTyping: false})
	if err != nil {
		r.logger.Error("design generation failed", "client", c.ID(), "error", err)
		r.events.Log(ctx, audit.Event{Kind: audit.KindGenerate, SessionID: c.ID(), Detail: req.DesignType})
		r.emitError(c, msgGenerateFailed)
		return
	}

	r.store.RecordDesign(c.ID(), spec)
	r.events.Log(ctx, audit.Event{Kind: audit.KindGenerate, SessionID: c.ID(), DesignID: spec.ID, Detail: spec.Type, Success: true})

	c.Emit(eventDesignGenerated, resultPayload{
		Success: true,
		Design:  spec,
		Message: fmt.Sprintf("I've created a %s based on your description. The design includes %d components and is ready for Figma export.", spec.Type, len(spec.Components)),
	})
	r.hub.BroadcastExcept(c, eventFigmaUpdate, updatePayload{Type: "new-design", Design: spec})
}

func (r *Router) handleModify(ctx context.Context, c Conn, data json.RawMessage) {
	var req modifyRequest
	if err := json.Unmarshal(data, &req); err != nil || req.DesignID == "" || req.Prompt == "" {
		r.emitError(c, "A design id and an edit request are required to modify a design.")
		return
	}

	// Not-found is an expected condition, distinct from a generation
	// failure, and the generation service is never invoked for it.
	prior, ok := r.store.GetDesign(req.DesignID)
	if !ok {
		r.emitError(c, msgNotFound)
		return
	}

	c.Emit(eventAITyping, typingPayload{IsTyping: true})
	spec, err := r.gen.Modify(ctx, prior, req.Prompt, req.Modification)
	c.Emit(eventAITyping, typingPayload{IsTyping: false})
	if err != nil {
		r.logger.Error("design modification failed", "client", c.ID(), "design", req.DesignID, "error", err)
		r.events.Log(ctx, audit.Event{Kind: audit.KindModify, SessionID: c.ID(), DesignID: req.DesignID})
		r.emitError(c, msgModifyFailed)
		return
	}

	r.store.RecordDesign(c.ID(), spec)
	r.events.Log(ctx, audit.Event{Kind: audit.KindModify, SessionID: c.ID(), DesignID: spec.ID, Detail: spec.ParentID, Success: true})

	c.Emit(eventDesignModified, resultPayload{
		Success: true,
		Design:  spec,
		Message: fmt.Sprintf("I've updated your design based on your request: %q", req.Prompt),
	})
	r.hub.BroadcastExcept(c, eventFigmaUpdate, updatePayload{Type: "design-modified", Design: spec})
}

func (r *Router) handleFigmaConnect(c Conn, data json.RawMessage) {
	r.hub.JoinPlugins(c)
	r.logger.Info("plugin connected", "client", c.ID(), "metadata", string(data))
	c.Emit(eventFigmaConnected, ackPayload{Success: true})
}

func (r *Router) handleFigmaRequest(c Conn, data json.RawMessage) {
	var req fetchRequest
	if err := json.Unmarshal(data, &req); err != nil || req.DesignID == "" {
		c.Emit(eventFigmaError, errorPayload{Message: "A design id is required."})
		return
	}
	spec, ok := r.store.GetDesign(req.DesignID)
	if !ok {
		c.Emit(eventFigmaError, errorPayload{Message: "Design not found"})
		return
	}
	c.Emit(eventFigmaDesignData, designPayload{Design: spec})
}

func (r *Router) emitError(c Conn, msg string) {
	if err := c.Emit(eventDesignError, errorPayload{Success: false, Message: msg}); err != nil {
		r.logger.Warn("emit error event failed", "client", c.ID(), "error", err)
	}
}
