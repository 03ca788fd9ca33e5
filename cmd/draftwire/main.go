// Entry point for the draftwire design generation service — chi router,
// WebSocket hub, OpenAI-backed generation, optional MCP surface.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/draftwire/draftwire/api"
	"github.com/draftwire/draftwire/audit"
	"github.com/draftwire/draftwire/generate"
	"github.com/draftwire/draftwire/hub"
	"github.com/draftwire/draftwire/prompt"
	"github.com/draftwire/draftwire/store"
)

func main() {
	_ = godotenv.Load()

	port := env("PORT", "3001")
	logLevel := env("LOG_LEVEL", "info")
	apiKey := os.Getenv("OPENAI_API_KEY")
	modelName := env("OPENAI_MODEL", "gpt-4")
	baseURL := env("OPENAI_BASE_URL", "")
	promptsFile := env("PROMPTS_FILE", "")
	auditPath := env("AUDIT_DB", "")
	mcpTransport := env("MCP_TRANSPORT", "")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if apiKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Prompt registry, with optional archetype overrides from YAML.
	prompts := prompt.NewRegistry()
	if promptsFile != "" {
		if err := prompts.LoadFile(promptsFile); err != nil {
			slog.Error("load prompts", "path", promptsFile, "error", err)
			os.Exit(1)
		}
	}

	// Model client.
	chatModel, err := generate.NewOpenAIModel(ctx, generate.ModelConfig{
		APIKey:  apiKey,
		Model:   modelName,
		BaseURL: baseURL,
	})
	if err != nil {
		slog.Error("openai model", "error", err)
		os.Exit(1)
	}

	gen := generate.New(chatModel, prompts, generate.WithLogger(logger))

	// Audit event log (optional, sqlite-backed).
	var events *audit.EventLogger
	if auditPath != "" {
		db, err := sql.Open("sqlite", auditPath)
		if err != nil {
			slog.Error("audit db", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		events = audit.NewEventLogger(db)
		if err := events.Init(); err != nil {
			slog.Error("audit init", "error", err)
			os.Exit(1)
		}
		if days := envInt("AUDIT_RETENTION_DAYS", 30); days > 0 {
			if err := events.Cleanup(ctx, days); err != nil {
				slog.Warn("audit cleanup", "error", err)
			}
		}
	}

	// Shared state and real-time hub.
	st := store.New()
	h := hub.NewHub(hub.WithLogger(logger))
	defer h.Close()
	router := hub.NewRouter(st, gen, h,
		hub.WithRouterLogger(logger),
		hub.WithAudit(events),
	)

	svc := api.New(st, gen, api.WithLogger(logger))

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	svc.RegisterHTTP(r)
	r.Get("/ws", hub.ServeWS(h, router, st))

	// Optional MCP over streamable HTTP.
	if mcpTransport == "http" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "draftwire",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpSrv
		}, nil))
	}

	// No WriteTimeout: /ws connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port, "model", modelName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
