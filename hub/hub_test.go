package hub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/draftwire/draftwire/store"
)

func dialTestServer(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocketGenerateEndToEnd(t *testing.T) {
	gen := &fakeGen{spec: loginSpec("d-ws-1")}
	st := store.New()
	h := NewHub()
	router := NewRouter(st, gen, h)
	srv := httptest.NewServer(ServeWS(h, router, st))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { h.Close() })

	// A plugin connects first and joins the broadcast group.
	plugin := dialTestServer(t, srv.URL)
	writeEnvelope(t, plugin, "figma-connect", map[string]string{"plugin": "figma"})
	if env := readEnvelope(t, plugin); env.Event != "figma-connected" {
		t.Fatalf("plugin got %s, want figma-connected", env.Event)
	}

	// A browser client generates a design.
	client := dialTestServer(t, srv.URL)
	writeEnvelope(t, client, "generate-design", map[string]string{
		"prompt":     "Create a modern login page",
		"designType": "login",
	})

	want := []string{"ai-typing", "ai-typing", "design-generated"}
	for _, wantEvent := range want {
		env := readEnvelope(t, client)
		if env.Event != wantEvent {
			t.Fatalf("client got %s, want %s", env.Event, wantEvent)
		}
	}

	// The plugin observes the broadcast.
	env := readEnvelope(t, plugin)
	if env.Event != "figma-update" {
		t.Fatalf("plugin got %s, want figma-update", env.Event)
	}
	var update updatePayload
	if err := json.Unmarshal(env.Data, &update); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if update.Type != "new-design" || update.Design.ID != "d-ws-1" {
		t.Errorf("unexpected update: %+v", update)
	}

	if _, ok := st.GetDesign("d-ws-1"); !ok {
		t.Error("design missing from history")
	}
	if st.SessionCount() != 2 {
		t.Errorf("SessionCount = %d, want 2", st.SessionCount())
	}
}

// A generation that outlives the pong window must not cost the requester
// its connection: handling runs on the read goroutine, so pongs go unread
// for the whole model call and the read deadline has to be re-armed when
// the loop resumes.
func TestSlowGenerationKeepsConnectionAlive(t *testing.T) {
	st := store.New()
	h := NewHub()
	h.pongWait = 150 * time.Millisecond
	h.pingPeriod = 50 * time.Millisecond

	// Several pong windows long, well under the client read deadline.
	gen := &fakeGen{spec: loginSpec("d-slow-1"), delay: 600 * time.Millisecond}
	router := NewRouter(st, gen, h)
	srv := httptest.NewServer(ServeWS(h, router, st))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { h.Close() })

	client := dialTestServer(t, srv.URL)
	writeEnvelope(t, client, "generate-design", map[string]string{
		"prompt":     "Create a modern login page",
		"designType": "login",
	})

	want := []string{"ai-typing", "ai-typing", "design-generated"}
	for _, wantEvent := range want {
		env := readEnvelope(t, client)
		if env.Event != wantEvent {
			t.Fatalf("client got %s, want %s", env.Event, wantEvent)
		}
	}

	if st.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1 (session destroyed mid-generation)", st.SessionCount())
	}
	if h.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", h.ClientCount())
	}

	// The connection is still usable for the next request.
	writeEnvelope(t, client, "figma-request-design", map[string]string{"designId": "d-slow-1"})
	if env := readEnvelope(t, client); env.Event != "figma-design-data" {
		t.Fatalf("follow-up got %s, want figma-design-data", env.Event)
	}
}

func TestWebSocketDisconnectDestroysSession(t *testing.T) {
	st := store.New()
	h := NewHub()
	router := NewRouter(st, &fakeGen{}, h)
	srv := httptest.NewServer(ServeWS(h, router, st))
	t.Cleanup(srv.Close)

	conn := dialTestServer(t, srv.URL)

	deadline := time.Now().Add(2 * time.Second)
	for st.SessionCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never created")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	for st.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not destroyed on disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}

func TestWebSocketMalformedFrame(t *testing.T) {
	st := store.New()
	h := NewHub()
	router := NewRouter(st, &fakeGen{}, h)
	srv := httptest.NewServer(ServeWS(h, router, st))
	t.Cleanup(srv.Close)

	conn := dialTestServer(t, srv.URL)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Event != "design-error" {
		t.Fatalf("got %s, want design-error", env.Event)
	}
}
