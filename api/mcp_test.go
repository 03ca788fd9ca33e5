package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/draftwire/draftwire/design"
	"github.com/draftwire/draftwire/store"
)

var testMCPImpl = &mcp.Implementation{Name: "draftwire-test", Version: "0.1.0"}

func mcpSession(t *testing.T, st *store.Store, gen *stubGen) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	New(st, gen).RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if result.IsError {
		return "", errors.New(tc.Text)
	}
	return tc.Text, nil
}

func TestMCP_Generate(t *testing.T) {
	st := store.New()
	gen := &stubGen{spec: testSpec("d-mcp-1")}
	session := mcpSession(t, st, gen)

	text, err := mcpCallTool(t, session, "design_generate", map[string]any{
		"prompt":      "Create a modern login page",
		"design_type": "login",
	})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}

	var spec design.Specification
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if spec.ID != "d-mcp-1" {
		t.Errorf("id = %q", spec.ID)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if _, ok := st.GetDesign("d-mcp-1"); !ok {
		t.Error("generated design must land in history")
	}
}

func TestMCP_GenerateMissingPrompt(t *testing.T) {
	gen := &stubGen{spec: testSpec("d-1")}
	session := mcpSession(t, store.New(), gen)

	if _, err := mcpCallTool(t, session, "design_generate", map[string]any{}); err == nil {
		t.Fatal("expected tool error for empty prompt")
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
}

func TestMCP_FetchAndList(t *testing.T) {
	st := store.New()
	st.RecordDesign("", testSpec("d-1"))
	st.RecordDesign("", testSpec("d-2"))
	session := mcpSession(t, st, &stubGen{})

	text, err := mcpCallTool(t, session, "design_fetch", map[string]any{"design_id": "d-2"})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}
	var spec design.Specification
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if spec.ID != "d-2" {
		t.Errorf("id = %q", spec.ID)
	}

	if _, err := mcpCallTool(t, session, "design_fetch", map[string]any{"design_id": "nope"}); err == nil {
		t.Fatal("expected tool error for unknown design id")
	}

	text, err = mcpCallTool(t, session, "design_list", map[string]any{"limit": 1})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}
	var listing struct {
		Designs []*design.Specification `json:"designs"`
	}
	if err := json.Unmarshal([]byte(text), &listing); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listing.Designs) != 1 || listing.Designs[0].ID != "d-2" {
		t.Errorf("listing = %+v", listing.Designs)
	}
}
