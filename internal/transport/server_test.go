package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/chat"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []Envelope
	acks     []Envelope
	done     chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, 8)}
}

func (h *recordingHandler) HandleMessage(_ context.Context, sender, sessionID string, msg chat.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, Envelope{Sender: sender, SessionID: sessionID, Message: &msg})
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) HandleAcknowledgement(_ context.Context, sender string, ack chat.Acknowledgement) {
	h.mu.Lock()
	h.acks = append(h.acks, Envelope{Sender: sender, Ack: &ack})
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
}

func newTestServer(t *testing.T) (*Server, *recordingHandler, *HTTPCourier) {
	t.Helper()
	h := newRecordingHandler()
	courier := NewHTTPCourier("agent1qself", "http://self.example/v1/messages", nil, time.Second)
	srv := NewServer(":0", h, courier, zap.NewNop())
	return srv, h, courier
}

func postEnvelope(t *testing.T, handler http.Handler, env Envelope) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServerAcceptsMessageEnvelope(t *testing.T) {
	srv, h, courier := newTestServer(t)

	msg := chat.NewText("build me a routine", false)
	rec := postEnvelope(t, srv.HTTPHandler(), Envelope{
		Sender:    "agent1qpeer",
		SessionID: "sess1",
		Endpoint:  "http://peer.example/v1/messages",
		Message:   &msg,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body)
	}

	h.wait(t)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) != 1 {
		t.Fatalf("handler saw %d messages, want 1", len(h.messages))
	}
	got := h.messages[0]
	if got.Sender != "agent1qpeer" || got.SessionID != "sess1" {
		t.Errorf("routing fields = %q/%q", got.Sender, got.SessionID)
	}
	if got.Message.Text() != "build me a routine" {
		t.Errorf("message text = %q", got.Message.Text())
	}

	// The peer's reply endpoint must be learned off the envelope.
	if url, ok := courier.Lookup("agent1qpeer"); !ok || url != "http://peer.example/v1/messages" {
		t.Errorf("endpoint not learned: %q, %v", url, ok)
	}
}

func TestServerRoutesAcks(t *testing.T) {
	srv, h, _ := newTestServer(t)

	ack := chat.NewAcknowledgement(uuid.New())
	rec := postEnvelope(t, srv.HTTPHandler(), Envelope{Sender: "agent1qpeer", Ack: &ack})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	h.wait(t)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.acks) != 1 || len(h.messages) != 0 {
		t.Fatalf("acks/messages = %d/%d, want 1/0", len(h.acks), len(h.messages))
	}
	if h.acks[0].Ack.AcknowledgedMsgID != ack.AcknowledgedMsgID {
		t.Errorf("ack id = %v, want %v", h.acks[0].Ack.AcknowledgedMsgID, ack.AcknowledgedMsgID)
	}
}

func TestServerRejectsBadEnvelopes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	msg := chat.NewText("hi", false)
	ack := chat.NewAcknowledgement(uuid.New())

	tests := []struct {
		name string
		env  Envelope
	}{
		{name: "no sender", env: Envelope{Message: &msg}},
		{name: "neither message nor ack", env: Envelope{Sender: "agent1qpeer"}},
		{name: "both message and ack", env: Envelope{Sender: "agent1qpeer", Message: &msg, Ack: &ack}},
		{name: "invalid message", env: Envelope{Sender: "agent1qpeer", Message: &chat.Message{MsgID: uuid.New()}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postEnvelope(t, srv.HTTPHandler(), tc.env); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestServerRejectsMalformedJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.HTTPHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServerHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.HTTPHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCourierDeliversAndLearns(t *testing.T) {
	var received Envelope
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("peer decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer peer.Close()

	courier := NewHTTPCourier("agent1qself", "http://self.example/v1/messages",
		map[string]string{"agent1qpeer": peer.URL}, time.Second)

	msg := chat.NewText("your plan is ready", false)
	if err := courier.SendMessage(context.Background(), "agent1qpeer", "sess1", msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if received.Sender != "agent1qself" || received.SessionID != "sess1" {
		t.Errorf("envelope fields = %q/%q", received.Sender, received.SessionID)
	}
	if received.Endpoint != "http://self.example/v1/messages" {
		t.Errorf("envelope must advertise the reply endpoint, got %q", received.Endpoint)
	}
	if received.Message == nil || received.Message.Text() != "your plan is ready" {
		t.Errorf("message not delivered intact: %+v", received.Message)
	}
}

func TestCourierUnknownPeer(t *testing.T) {
	courier := NewHTTPCourier("agent1qself", "", nil, time.Second)
	err := courier.SendMessage(context.Background(), "agent1qghost", "s", chat.NewText("hi", false))
	if err == nil {
		t.Fatal("expected error for unknown peer")
	}
}

func TestCourierPeerFailure(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer peer.Close()

	courier := NewHTTPCourier("agent1qself", "", map[string]string{"agent1qpeer": peer.URL}, time.Second)
	err := courier.SendAck(context.Background(), "agent1qpeer", "s", chat.NewAcknowledgement(uuid.New()))
	if err == nil {
		t.Fatal("expected error when peer returns 503")
	}
}

func TestCourierLearnOverridesSeed(t *testing.T) {
	courier := NewHTTPCourier("agent1qself", "", map[string]string{"agent1qpeer": "http://old.example"}, time.Second)
	courier.Learn("agent1qpeer", "http://new.example")
	if url, _ := courier.Lookup("agent1qpeer"); url != "http://new.example" {
		t.Errorf("learned endpoint should win, got %q", url)
	}
	// Blank learns are ignored.
	courier.Learn("agent1qpeer", "")
	if url, _ := courier.Lookup("agent1qpeer"); url != "http://new.example" {
		t.Errorf("blank learn must not clobber, got %q", url)
	}
}
