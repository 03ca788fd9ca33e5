// Package api exposes the design history and generation pipeline over REST
// (chi) and, optionally, as MCP tools.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/draftwire/draftwire/hub"
	"github.com/draftwire/draftwire/kit"
	"github.com/draftwire/draftwire/store"
)

// recentLimit is how many designs the listing endpoint returns.
const recentLimit = 20

// Service serves the REST and MCP surfaces over the shared store and
// generation pipeline.
type Service struct {
	store  *store.Store
	gen    hub.Generator
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates the API service.
func New(st *store.Store, gen hub.Generator, opts ...Option) *Service {
	s := &Service{
		store:  st,
		gen:    gen,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterHTTP mounts the REST endpoints on a chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/designs", s.handleListDesigns)
	r.Get("/api/designs/{designID}", s.handleGetDesign)
	r.Post("/api/export-figma", s.handleExportFigma)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) handleListDesigns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"designs": s.store.ListRecent(recentLimit),
	})
}

func (s *Service) handleGetDesign(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.store.GetDesign(chi.URLParam(r, "designID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Design not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"design": spec})
}

type exportRequest struct {
	DesignID     string `json:"designId"`
	FigmaFileKey string `json:"figmaFileKey"`
	AccessToken  string `json:"accessToken"`
}

// handleExportFigma acknowledges an export request. The actual third-party
// export integration is stubbed: the plugin pulls designs itself over the
// real-time channel.
func (s *Service) handleExportFigma(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DesignID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "designId is required"})
		return
	}
	if _, ok := s.store.GetDesign(req.DesignID); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Design not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Design exported to Figma successfully",
		"figmaUrl":   fmt.Sprintf("https://figma.com/file/%s", req.FigmaFileKey),
		"exportedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

// --- MCP tools ---

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// RegisterMCP registers the design tools on an MCP server, so agent
// frontends can drive the same pipeline the browser client uses.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerGenerateTool(srv)
	s.registerFetchTool(srv)
	s.registerListTool(srv)
}

type generateToolReq struct {
	Prompt     string `json:"prompt"`
	DesignType string `json:"design_type"`
}

func (s *Service) registerGenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "design_generate",
		Description: "Generate a UI design specification from a natural-language prompt.",
		InputSchema: inputSchema(map[string]any{
			"prompt":      map[string]any{"type": "string", "description": "Natural-language description of the design"},
			"design_type": map[string]any{"type": "string", "description": "Optional archetype hint (login, dashboard, landing)"},
		}, []string{"prompt"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*generateToolReq)
		if r.Prompt == "" {
			return nil, fmt.Errorf("prompt is required")
		}
		spec, err := s.gen.Generate(ctx, r.Prompt, r.DesignType)
		if err != nil {
			return nil, err
		}
		s.store.RecordDesign("", spec)
		return spec, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r generateToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

type fetchToolReq struct {
	DesignID string `json:"design_id"`
}

func (s *Service) registerFetchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "design_fetch",
		Description: "Fetch a previously generated design specification by id.",
		InputSchema: inputSchema(map[string]any{
			"design_id": map[string]any{"type": "string", "description": "Design specification id"},
		}, []string{"design_id"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*fetchToolReq)
		spec, ok := s.store.GetDesign(r.DesignID)
		if !ok {
			return nil, fmt.Errorf("design %q not found", r.DesignID)
		}
		return spec, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r fetchToolReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

type listToolReq struct {
	Limit int `json:"limit"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "design_list",
		Description: "List the most recently generated design specifications.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum number of designs (default 20)"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*listToolReq)
		limit := r.Limit
		if limit <= 0 {
			limit = recentLimit
		}
		return map[string]any{"designs": s.store.ListRecent(limit)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		r := &listToolReq{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
				return nil, err
			}
		}
		return r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
