package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chartengine/internal/model"
)

func sampleSignal() model.Signal {
	return model.Signal{
		ID:        "1700000000000-LONG",
		Symbol:    "NIFTY",
		Timestamp: 1700000000000,
		Price:     22150.5,
		Direction: model.Long,
		FastMA:    22140.25,
		SlowMA:    22130,
	}
}

func TestSignalAlert(t *testing.T) {
	a := SignalAlert(sampleSignal())
	if a.Level != AlertInfo {
		t.Errorf("expected INFO, got %s", a.Level)
	}
	if a.Title != "NIFTY LONG" {
		t.Errorf("unexpected title %q", a.Title)
	}
	for _, want := range []string{"22150.5", "2023-11-14T22:13:20Z", "fast=22140.25", "slow=22130.00"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}
	if a.Signal == nil || a.Signal.ID != "1700000000000-LONG" {
		t.Errorf("expected signal attached, got %+v", a.Signal)
	}
}

func TestWebhookNotifier_PostsSignal(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), SignalAlert(sampleSignal())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["event"] != "signal" || got["title"] != "NIFTY LONG" {
		t.Errorf("unexpected event/title %v %v", got["event"], got["title"])
	}
	if got["signal_id"] != "1700000000000-LONG" || got["direction"] != "LONG" ||
		got["symbol"] != "NIFTY" || got["price"] != 22150.5 {
		t.Errorf("signal fields not flattened into body: %v", got)
	}
}

func TestNewWebhookEvent_PlainAlert(t *testing.T) {
	ev := NewWebhookEvent(Alert{Level: AlertWarning, Title: "feed", Message: "down"}, time.UnixMilli(42))
	if ev.Event != "alert" || ev.SignalID != "" || ev.SentAt != 42 || ev.Level != AlertWarning {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.baseURL = srv.URL
	if err := n.Send(context.Background(), SignalAlert(sampleSignal())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if body["chat_id"] != "42" || body["parse_mode"] != "MarkdownV2" {
		t.Errorf("unexpected body %v", body)
	}
	text, _ := body["text"].(string)
	for _, want := range []string{"*NIFTY LONG*", `22150\.5`, `fast 22140\.25 / slow 22130\.00`, "`1700000000000-LONG`"} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q missing %q", text, want)
		}
	}
}

func TestTelegramNotifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.baseURL = srv.URL
	err := n.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api description in error, got %v", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a.b-c_d"); got != `a\.b\-c\_d` {
		t.Errorf("unexpected escape %q", got)
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Send(context.Context, Alert) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &countingNotifier{}
	b := &countingNotifier{err: boom}
	c := &countingNotifier{}

	err := Multi{a, b, c}.Send(context.Background(), Alert{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Errorf("expected every notifier called once, got %d %d %d", a.n, b.n, c.n)
	}
}

func TestSelect(t *testing.T) {
	if _, ok := Select("", "", "").(*LogNotifier); !ok {
		t.Error("expected log notifier only")
	}
	m, ok := Select("tok", "chat", "http://example.invalid").(Multi)
	if !ok || len(m) != 3 {
		t.Fatalf("expected 3 notifiers, got %#v", m)
	}
	if m, ok := Select("tok", "", "").(*LogNotifier); !ok {
		t.Errorf("telegram needs both token and chat id, got %#v", m)
	}
}

func TestThrottle_DropsOverBurst(t *testing.T) {
	inner := &countingNotifier{}
	n := Throttle(inner, time.Hour, 2)

	var throttled int
	for i := 0; i < 4; i++ {
		if err := n.Send(context.Background(), Alert{}); errors.Is(err, ErrThrottled) {
			throttled++
		} else if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if inner.n != 2 || throttled != 2 {
		t.Errorf("delivered=%d throttled=%d, want 2 and 2", inner.n, throttled)
	}
}
