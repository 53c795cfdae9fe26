package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chartengine/internal/model"

	"github.com/gorilla/websocket"
)

func TestDecodeTicks(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"single", `{"symbol":"nifty","price":100.5,"qty":2,"tick_ts":"2024-01-02T09:15:00Z"}`, 1, false},
		{"array", `[{"symbol":"A","price":1},{"symbol":"B","price":2}]`, 2, false},
		{"array drops blank symbols", `[{"symbol":"A","price":1},{"price":2}]`, 1, false},
		{"no symbol", `{"price":1}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTicks([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d ticks, got %d", tt.want, len(got))
			}
		})
	}
}

func TestDecodeTicks_Normalizes(t *testing.T) {
	got, err := DecodeTicks([]byte(`{"symbol":" nifty ","price":100.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Symbol != "NIFTY" {
		t.Errorf("expected upper-cased symbol, got %q", got[0].Symbol)
	}
	if got[0].TickTS.IsZero() {
		t.Error("expected missing timestamp to be filled")
	}
}

func TestNew_RejectsBadScheme(t *testing.T) {
	if _, err := New(Config{URL: "http://localhost:9001/ws"}); err == nil {
		t.Fatal("expected error for http scheme")
	}
	if _, err := New(Config{URL: "ws://localhost:9001/ws"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFeed_StreamsTicks(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"NIFTY","price":101.25,"qty":3}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`bad`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"BANKNIFTY","price":48000}`))
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	f, err := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	connected := make(chan struct{}, 1)
	f.OnConnect = func() { connected <- struct{}{} }

	tickCh := make(chan model.Tick, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Start(ctx, tickCh) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not connect")
	}

	var got []model.Tick
	for len(got) < 2 {
		select {
		case tk := <-tickCh:
			got = append(got, tk)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d ticks", len(got))
		}
	}
	if got[0].Symbol != "NIFTY" || got[0].Price != 101.25 || got[0].Qty != 3 {
		t.Errorf("unexpected first tick %+v", got[0])
	}
	if got[1].Symbol != "BANKNIFTY" {
		t.Errorf("unexpected second tick %+v", got[1])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
