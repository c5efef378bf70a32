package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/notify"
)

type fakeSource struct {
	states chan domain.SessionState
	slot   *notify.Slot
}

func newFakeSource() *fakeSource {
	return &fakeSource{states: make(chan domain.SessionState, 8), slot: notify.NewSlot()}
}

func (f *fakeSource) Watch(context.Context) <-chan domain.SessionState { return f.states }
func (f *fakeSource) Notifications() *notify.Slot                      { return f.slot }

func startHub(t *testing.T, src *fakeSource) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(src, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, nil, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.done
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

func TestHub_StreamsState(t *testing.T) {
	src := newFakeSource()
	_, url := startHub(t, src)
	conn := dial(t, url)

	src.states <- domain.SessionState{Version: 7, SignedIn: true}

	evt := readEvent(t, conn)
	if evt.Type != EventTypeState {
		t.Fatalf("type = %q, want state", evt.Type)
	}
	var s domain.SessionState
	if err := json.Unmarshal(evt.Payload, &s); err != nil {
		t.Fatal(err)
	}
	if s.Version != 7 || !s.SignedIn {
		t.Errorf("state = %+v", s)
	}
}

func TestHub_DeliversNotificationOnce(t *testing.T) {
	src := newFakeSource()
	_, url := startHub(t, src)
	conn := dial(t, url)

	src.states <- domain.SessionState{Version: 1}
	readEvent(t, conn)

	src.slot.Publish(domain.NotificationError, "Username already exists")

	evt := readEvent(t, conn)
	if evt.Type != EventTypeNotification {
		t.Fatalf("type = %q, want notification", evt.Type)
	}
	var n domain.Notification
	json.Unmarshal(evt.Payload, &n)
	if n.Message != "Username already exists" || n.Kind != domain.NotificationError {
		t.Errorf("notification = %+v", n)
	}
	if src.slot.Pending() {
		t.Error("notification should be consumed by the stream")
	}
}

func TestHub_KeepsNotificationWithoutClients(t *testing.T) {
	src := newFakeSource()
	startHub(t, src)

	src.slot.Publish(domain.NotificationInfo, "Logged out")
	time.Sleep(50 * time.Millisecond)

	n, ok := src.slot.Consume()
	if !ok || n.Message != "Logged out" {
		t.Errorf("notification = %+v, ok = %v", n, ok)
	}
}

func TestHub_PingPong(t *testing.T) {
	src := newFakeSource()
	_, url := startHub(t, src)
	conn := dial(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, Event{Type: EventTypePing}); err != nil {
		t.Fatal(err)
	}
	if evt := readEvent(t, conn); evt.Type != EventTypePong {
		t.Errorf("type = %q, want pong", evt.Type)
	}

	if err := wsjson.Write(ctx, conn, Event{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if evt := readEvent(t, conn); evt.Type != EventTypeError {
		t.Errorf("type = %q, want error", evt.Type)
	}
}
