package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"

	"chartengine/internal/chart"
	"chartengine/internal/chartsvc"
	"chartengine/internal/model"
)

const testSecret = "JBSWY3DPEHPK3PXP"

type fakeCharts struct {
	thresholds map[string][]model.Threshold
	nextID     int
}

func newFakeCharts() *fakeCharts {
	return &fakeCharts{thresholds: map[string][]model.Threshold{"NIFTY": nil}}
}

func (f *fakeCharts) Symbols() []string { return []string{"NIFTY"} }

func (f *fakeCharts) Snapshot(symbol string) (chart.Snapshot, error) {
	if _, ok := f.thresholds[symbol]; !ok {
		return chart.Snapshot{}, fmt.Errorf("%w: %q", chartsvc.ErrUnknownSymbol, symbol)
	}
	return chart.Snapshot{Symbol: symbol, State: chart.Empty}, nil
}

func (f *fakeCharts) Thresholds(symbol string) ([]model.Threshold, error) {
	ths, ok := f.thresholds[symbol]
	if !ok {
		return nil, chartsvc.ErrUnknownSymbol
	}
	return ths, nil
}

func (f *fakeCharts) AddThreshold(_ context.Context, symbol string, price float64, label string) (model.Threshold, chart.Snapshot, error) {
	if _, ok := f.thresholds[symbol]; !ok {
		return model.Threshold{}, chart.Snapshot{}, chartsvc.ErrUnknownSymbol
	}
	f.nextID++
	th := model.Threshold{ID: fmt.Sprintf("t%d", f.nextID), Price: price, Label: label}
	f.thresholds[symbol] = append(f.thresholds[symbol], th)
	return th, chart.Snapshot{Symbol: symbol}, nil
}

func (f *fakeCharts) RemoveThreshold(_ context.Context, symbol, id string) (bool, error) {
	ths, ok := f.thresholds[symbol]
	if !ok {
		return false, chartsvc.ErrUnknownSymbol
	}
	for i, th := range ths {
		if th.ID == id {
			f.thresholds[symbol] = append(ths[:i], ths[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeSignals struct {
	sigs []model.Signal
	err  error
}

func (f *fakeSignals) ListSignals(_ context.Context, symbol string, limit int) ([]model.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Signal
	for _, s := range f.sigs {
		if s.Symbol == symbol && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestMux(opts RouteOptions) (*http.ServeMux, *Hub, *fakeCharts) {
	mux := http.NewServeMux()
	hub := NewHub(HubConfig{})
	charts := newFakeCharts()
	RegisterRoutes(mux, hub, charts, opts)
	return mux, hub, charts
}

func do(mux http.Handler, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func otpHeader(t *testing.T) http.Header {
	t.Helper()
	code, err := totp.GenerateCode(testSecret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return http.Header{AdminOTPHeader: []string{code}}
}

func TestSnapshotEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(RouteOptions{})

	tests := []struct {
		target string
		status int
	}{
		{"/api/snapshot", http.StatusBadRequest},
		{"/api/snapshot?symbol=UNKNOWN", http.StatusNotFound},
		{"/api/snapshot?symbol=nifty", http.StatusOK},
	}
	for _, tt := range tests {
		rec := do(mux, http.MethodGet, tt.target, nil, nil)
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.target, rec.Code, tt.status)
		}
	}

	rec := do(mux, http.MethodGet, "/api/snapshot?symbol=NIFTY", nil, nil)
	var snap struct {
		Symbol string `json:"symbol"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Symbol != "NIFTY" || snap.State != "EMPTY" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestThresholds_AdminDisabled(t *testing.T) {
	mux, _, _ := newTestMux(RouteOptions{})
	body := []byte(`{"symbol":"NIFTY","price":22000}`)
	rec := do(mux, http.MethodPost, "/api/thresholds", body, otpHeader(t))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestThresholds_RejectsMissingOrBadOTP(t *testing.T) {
	mux, _, _ := newTestMux(RouteOptions{AdminSecret: testSecret})
	body := []byte(`{"symbol":"NIFTY","price":22000}`)

	if rec := do(mux, http.MethodPost, "/api/thresholds", body, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing OTP: status = %d, want 401", rec.Code)
	}
	bad := http.Header{AdminOTPHeader: []string{"000000x"}}
	if rec := do(mux, http.MethodPost, "/api/thresholds", body, bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad OTP: status = %d, want 401", rec.Code)
	}
}

func TestThresholds_AddListRemove(t *testing.T) {
	mux, _, charts := newTestMux(RouteOptions{AdminSecret: testSecret})

	rec := do(mux, http.MethodPost, "/api/thresholds",
		[]byte(`{"symbol":"nifty","price":22000,"label":"resistance"}`), otpHeader(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var th model.Threshold
	json.Unmarshal(rec.Body.Bytes(), &th)
	if th.ID == "" || th.Price != 22000 || th.Label != "resistance" {
		t.Errorf("unexpected threshold %+v", th)
	}

	rec = do(mux, http.MethodGet, "/api/thresholds?symbol=NIFTY", nil, nil)
	var list ThresholdResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Symbol != "NIFTY" || len(list.Thresholds) != 1 {
		t.Errorf("unexpected list %+v", list)
	}

	if rec := do(mux, http.MethodPost, "/api/thresholds",
		[]byte(`{"symbol":"NIFTY","price":-1}`), otpHeader(t)); rec.Code != http.StatusBadRequest {
		t.Errorf("negative price: status = %d, want 400", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/api/thresholds",
		[]byte(`{"symbol":"OTHER","price":1}`), otpHeader(t)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown symbol: status = %d, want 404", rec.Code)
	}

	target := "/api/thresholds?symbol=NIFTY&id=" + th.ID
	if rec := do(mux, http.MethodDelete, target, nil, otpHeader(t)); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(mux, http.MethodDelete, target, nil, otpHeader(t)); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
	if len(charts.thresholds["NIFTY"]) != 0 {
		t.Errorf("threshold not removed: %+v", charts.thresholds["NIFTY"])
	}
}

func TestSignalsEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(RouteOptions{})
	if rec := do(mux, http.MethodGet, "/api/signals?symbol=NIFTY", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no lister: status = %d, want 503", rec.Code)
	}

	lister := &fakeSignals{sigs: []model.Signal{
		{ID: "2-SHORT", Symbol: "NIFTY", Direction: model.Short},
		{ID: "1-LONG", Symbol: "NIFTY", Direction: model.Long},
		{ID: "1-LONG", Symbol: "BANKNIFTY", Direction: model.Long},
	}}
	mux, _, _ = newTestMux(RouteOptions{Signals: lister})

	rec := do(mux, http.MethodGet, "/api/signals?symbol=nifty&limit=1", nil, nil)
	var sigs []model.Signal
	json.Unmarshal(rec.Body.Bytes(), &sigs)
	if len(sigs) != 1 || sigs[0].ID != "2-SHORT" {
		t.Errorf("unexpected signals %+v", sigs)
	}

	rec = do(mux, http.MethodGet, "/api/signals?symbol=NONE", nil, nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty result should be [], got %s", rec.Body.String())
	}

	lister.err = errors.New("db closed")
	if rec := do(mux, http.MethodGet, "/api/signals?symbol=NIFTY", nil, nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("lister error: status = %d, want 500", rec.Code)
	}
}

func TestMissedEndpoint(t *testing.T) {
	mux, hub, _ := newTestMux(RouteOptions{})
	for i := 0; i < 4; i++ {
		hub.Broadcast("pub:chart:NIFTY", []byte(`{}`))
	}

	if rec := do(mux, http.MethodGet, "/api/missed?channel=pub:chart:NIFTY", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing from: status = %d, want 400", rec.Code)
	}

	rec := do(mux, http.MethodGet, "/api/missed?channel=pub:chart:NIFTY&from=2&to=3", nil, nil)
	var resp MissedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CurrentSeq != 4 || len(resp.Messages) != 2 {
		t.Errorf("current=%d messages=%d, want 4/2", resp.CurrentSeq, len(resp.Messages))
	}

	rec = do(mux, http.MethodGet, "/api/missed?channel=pub:chart:NIFTY&from=3", nil, nil)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Messages) != 2 {
		t.Errorf("open-ended range: got %d messages, want 2", len(resp.Messages))
	}
}

func TestHealthAndStats(t *testing.T) {
	mux, _, _ := newTestMux(RouteOptions{})

	rec := do(mux, http.MethodGet, "/health", nil, nil)
	var health map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health["status"] != "ok" {
		t.Errorf("unexpected health %v", health)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	rec = do(mux, http.MethodGet, "/api/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("stats: status = %d", rec.Code)
	}
	rec = do(mux, http.MethodGet, "/api/latency", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("latency: status = %d", rec.Code)
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	mux, hub, _ := newTestMux(RouteOptions{})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	hub.Broadcast("pub:chart:NIFTY", []byte(`{"symbol":"NIFTY","bars":1}`))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	next := func() []json.RawMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msgs []json.RawMessage
		for _, part := range bytes.Split(frame, []byte{'\n'}) {
			msgs = append(msgs, part)
		}
		return msgs
	}

	// Latest state is replayed on connect
	initial := next()
	var env envelope
	json.Unmarshal(initial[0], &env)
	if !env.Initial || env.Channel != "pub:chart:NIFTY" {
		t.Fatalf("unexpected initial envelope %+v", env)
	}

	sub := `{"type":"SUBSCRIBE","req_id":"1","symbols":["BANKNIFTY"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack AckMessage
	for ack.Type == "" {
		for _, m := range next() {
			json.Unmarshal(m, &ack)
		}
	}
	if ack.Type != "subscribed" || ack.ReqID != "1" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	// Filtered out, then delivered
	hub.Broadcast("pub:chart:NIFTY", []byte(`{"symbol":"NIFTY","bars":2}`))
	hub.Broadcast("pub:signal:BANKNIFTY", []byte(`{"id":"1-LONG"}`))

	msgs := next()
	json.Unmarshal(msgs[0], &env)
	if env.Channel != "pub:signal:BANKNIFTY" || env.ChannelSeq != 1 {
		t.Errorf("unexpected envelope %+v", env)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", hub.ClientCount())
	}
}
