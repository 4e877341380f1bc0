// Package transport moves chat envelopes between agents over HTTP. The
// server accepts envelopes from peers; the courier delivers ours to theirs.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/planfit-ai/planfit/internal/chat"
)

// Envelope is the unit of exchange on the wire. Exactly one of Message or
// Ack is set. Endpoint, when present, tells the receiver where replies to
// Sender should be delivered.
type Envelope struct {
	Sender    string                `json:"sender"`
	SessionID string                `json:"session_id,omitempty"`
	Endpoint  string                `json:"endpoint,omitempty"`
	Message   *chat.Message         `json:"message,omitempty"`
	Ack       *chat.Acknowledgement `json:"ack,omitempty"`
}

// Courier delivers envelopes to a peer agent identified by its address.
type Courier interface {
	SendMessage(ctx context.Context, peer, sessionID string, msg chat.Message) error
	SendAck(ctx context.Context, peer, sessionID string, ack chat.Acknowledgement) error
}

// HTTPCourier posts envelopes to peer endpoints. Endpoints come from static
// configuration and from addresses learned off inbound envelopes; learned
// entries win so a peer can move.
type HTTPCourier struct {
	client       *http.Client
	self         string
	selfEndpoint string

	mu        sync.RWMutex
	endpoints map[string]string
}

// NewHTTPCourier builds a courier. self is our agent address, stamped on
// every outbound envelope; selfEndpoint is advertised so peers can reply.
// peers seeds the address-to-URL table.
func NewHTTPCourier(self, selfEndpoint string, peers map[string]string, timeout time.Duration) *HTTPCourier {
	endpoints := make(map[string]string, len(peers))
	for addr, url := range peers {
		endpoints[addr] = url
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCourier{
		client:       &http.Client{Timeout: timeout},
		self:         self,
		selfEndpoint: selfEndpoint,
		endpoints:    endpoints,
	}
}

// Learn records (or updates) the endpoint for a peer address.
func (c *HTTPCourier) Learn(peer, endpoint string) {
	if peer == "" || endpoint == "" {
		return
	}
	c.mu.Lock()
	c.endpoints[peer] = endpoint
	c.mu.Unlock()
}

// Lookup returns the known endpoint for a peer, if any.
func (c *HTTPCourier) Lookup(peer string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.endpoints[peer]
	return url, ok
}

func (c *HTTPCourier) SendMessage(ctx context.Context, peer, sessionID string, msg chat.Message) error {
	return c.post(ctx, peer, Envelope{
		Sender:    c.self,
		SessionID: sessionID,
		Endpoint:  c.selfEndpoint,
		Message:   &msg,
	})
}

func (c *HTTPCourier) SendAck(ctx context.Context, peer, sessionID string, ack chat.Acknowledgement) error {
	return c.post(ctx, peer, Envelope{
		Sender:    c.self,
		SessionID: sessionID,
		Endpoint:  c.selfEndpoint,
		Ack:       &ack,
	})
}

func (c *HTTPCourier) post(ctx context.Context, peer string, env Envelope) error {
	url, ok := c.Lookup(peer)
	if !ok {
		return fmt.Errorf("no known endpoint for %s", peer)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", peer, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver to %s: peer returned %s", peer, resp.Status)
	}
	return nil
}
