package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaminalder/tictactoe-engine/internal/app"
	"github.com/jaminalder/tictactoe-engine/internal/domain"
)

// frame is Message with contents left raw for the test to decode.
type frame struct {
	Type     string          `json:"type"`
	Contents json.RawMessage `json:"contents"`
}

func dialGame(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func decodeState(t *testing.T, f frame) stateJSON {
	t.Helper()
	var st stateJSON
	if err := json.Unmarshal(f.Contents, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestWebsocketCommands(t *testing.T) {
	svc, sched, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	gv, _ := svc.CreateGame(app.GameOptions{})

	conn := dialGame(t, srv, gv.ID)
	defer conn.Close()

	first := readUntil(t, conn, func(f frame) bool { return f.Type == "state" })
	if st := decodeState(t, first); st.Ply != 0 || st.Turn != "X" {
		t.Fatalf("unexpected initial state: %+v", st)
	}

	if err := conn.WriteJSON(Message{Type: "play", Contents: map[string]any{"cell": 0}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, func(f frame) bool { return f.Type == "state" && decodeState(t, f).Ply == 1 })

	sched.Fire()
	f := readUntil(t, conn, func(f frame) bool { return f.Type == "state" && decodeState(t, f).Ply == 2 })
	if st := decodeState(t, f); st.Board[4] != "O" {
		t.Fatalf("expected automated reply at 4: %+v", st)
	}

	if err := conn.WriteJSON(Message{Type: "play", Contents: map[string]any{"cell": 4}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f = readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
	if !strings.Contains(string(f.Contents), "Cell is occupied") {
		t.Fatalf("unexpected error frame: %s", f.Contents)
	}

	for _, tc := range []struct {
		name string
		msg  Message
		want string
	}{
		{"no contents", Message{Type: "play"}, "no cell"},
		{"empty contents", Message{Type: "play", Contents: map[string]any{}}, "no cell"},
		{"null cell", Message{Type: "play", Contents: map[string]any{"cell": nil}}, "no cell"},
		{"fractional cell", Message{Type: "play", Contents: map[string]any{"cell": 5.9}}, "not a whole number"},
		{"string cell", Message{Type: "play", Contents: map[string]any{"cell": "5"}}, "unable to parse play request"},
	} {
		if err := conn.WriteJSON(tc.msg); err != nil {
			t.Fatalf("%s: write: %v", tc.name, err)
		}
		f = readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
		if !strings.Contains(string(f.Contents), tc.want) {
			t.Fatalf("%s: unexpected error frame: %s", tc.name, f.Contents)
		}
	}
	if st, _ := svc.Get(gv.ID); st.Game.Ply != 2 || st.Game.Board[0] != domain.X || st.Game.Board[5] != domain.Empty {
		t.Fatalf("malformed play frames changed the board:\n%v", st.Game.Board)
	}

	for _, msg := range []Message{
		{Type: "difficulty", Contents: map[string]any{"level": "easy"}},
		{Type: "mode", Contents: map[string]any{"vs_ai": false}},
		{Type: "reset"},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write %s: %v", msg.Type, err)
		}
	}
	readUntil(t, conn, func(f frame) bool {
		if f.Type != "state" {
			return false
		}
		st := decodeState(t, f)
		return st.Ply == 0 && !st.VsAI && st.Difficulty.String() == "easy"
	})

	if err := conn.WriteJSON(Message{Type: "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f = readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
	if !strings.Contains(string(f.Contents), "unknown message type") {
		t.Fatalf("unexpected error frame: %s", f.Contents)
	}
}

func TestWebsocketUnknownGame(t *testing.T) {
	_, _, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %v", resp)
	}
}
