package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hirelane/proctor-backend/internal/service"
	ws "github.com/hirelane/proctor-backend/internal/websocket"
)

// dialStream upgrades a test connection and registers it for the invitation,
// the way ExamStream does once a session check passes.
func dialStream(t *testing.T, h *WSHandler, invID uuid.UUID) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.register(invID, &examClient{conn: conn})
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyExpiredReachesOpenStream(t *testing.T) {
	h := NewWSHandler(nil, nil, zerolog.Nop(), nil)
	invID := uuid.New()
	conn := dialStream(t, h, invID)

	h.NotifyExpired(invID, true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp ws.ExpiredResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read expiry frame: %v", err)
	}
	if resp.Event != ws.EventExpired {
		t.Errorf("event = %q, want %q", resp.Event, ws.EventExpired)
	}
	if !resp.AutoSubmit {
		t.Error("frame did not carry auto_submit=true")
	}
}

func TestNotifySubmittedReachesOpenStream(t *testing.T) {
	h := NewWSHandler(nil, nil, zerolog.Nop(), nil)
	invID := uuid.New()
	conn := dialStream(t, h, invID)

	submittedAt := time.Now()
	h.NotifySubmitted(invID, &service.SubmissionAck{
		Status:      "submitted",
		Message:     "Your answers have been submitted. Results will be announced by the company.",
		SubmittedAt: submittedAt,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp ws.SubmittedResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read submitted frame: %v", err)
	}
	if resp.Event != ws.EventSubmitted {
		t.Errorf("event = %q, want %q", resp.Event, ws.EventSubmitted)
	}
	if resp.Status != "submitted" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.SubmittedAt != submittedAt.Unix() {
		t.Errorf("submitted_at = %d, want %d", resp.SubmittedAt, submittedAt.Unix())
	}
}

func TestNotifyWithoutOpenStreamIsNoop(t *testing.T) {
	h := NewWSHandler(nil, nil, zerolog.Nop(), nil)
	h.NotifyExpired(uuid.New(), true)
	h.NotifySubmitted(uuid.New(), &service.SubmissionAck{Status: "submitted", SubmittedAt: time.Now()})
}

func TestUnregisterKeepsReplacementConnection(t *testing.T) {
	h := NewWSHandler(nil, nil, zerolog.Nop(), nil)
	invID := uuid.New()

	first := &examClient{}
	second := &examClient{}
	h.register(invID, first)
	h.register(invID, second)

	// The first connection's deferred cleanup must not evict its successor.
	h.unregister(invID, first)
	if got, ok := h.client(invID); !ok || got != second {
		t.Fatal("reconnected client was evicted by the stale cleanup")
	}

	h.unregister(invID, second)
	if _, ok := h.client(invID); ok {
		t.Fatal("client still registered after its own cleanup")
	}
}
