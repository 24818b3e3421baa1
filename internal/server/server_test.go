package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/config"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Port = 0
	s := New(cfg)
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestUnknownPathClosesWithPolicyViolation(t *testing.T) {
	_, ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/nope"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
}

func TestEventsHelloAndConfigUpdate(t *testing.T) {
	s, ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := `{"type":"hello","v":1,"client":"android","model":"Pixel","sdkInt":34}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(hello)); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	update := `{"type":"config.update","esp32GainLeft":2.5,"hornRatioThreshold":0.6}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(update)); err != nil {
		t.Fatalf("write config.update: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tuning := s.state.Tuning()
		if tuning.ESP32GainLeft == 2.5 && tuning.HornRatioThreshold == 0.6 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("config.update was not applied: %+v", s.state.Tuning())
}

func TestStatusRequestRepliesWithSnapshot(t *testing.T) {
	_, ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status.request"}`)); err != nil {
		t.Fatalf("write status.request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !strings.Contains(string(data), `"type":"status"`) {
		t.Fatalf("reply = %s, want a status snapshot", data)
	}
}

func TestCalibratePoseZeroRepliesNotOKWithoutFreshPoses(t *testing.T) {
	_, ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"calibrate.pose_zero"}`)); err != nil {
		t.Fatalf("write calibrate.pose_zero: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !strings.Contains(string(data), `"ok":false`) {
		t.Fatalf("reply = %s, want ok:false", data)
	}
}
