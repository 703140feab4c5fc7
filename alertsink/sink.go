// Package alertsink implements the webhook alert and fulfillment sinks:
// always log, best-effort POST the webhook, and never let a sink failure
// propagate to the caller.
package alertsink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	ethlog "github.com/ethereum/go-ethereum/log"
)

var logger = ethlog.New("module", "alertsink")

const hookTimeout = 5 * time.Second

// Sink posts JSON payloads to a webhook URL, logging and swallowing any
// failure instead of propagating it ("the alert sink itself never
// propagates: it logs its own failures and swallows them").
type Sink struct {
	url    string
	client *http.Client
}

// New builds a Sink for url. An empty url is valid: Send becomes a no-op
// beyond logging, matching send_hook's "will only send the hook if hook_url
// is provided".
func New(url string) *Sink {
	return &Sink{url: url, client: &http.Client{Timeout: hookTimeout}}
}

// Send logs msg and, if a URL is configured, best-effort POSTs it as JSON.
func (s *Sink) Send(ctx context.Context, msg string, fields map[string]interface{}) {
	logger.Info("alert", "msg", msg)
	if s.url == "" {
		return
	}

	payload := map[string]interface{}{"content": msg}
	for k, v := range fields {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal webhook payload", "err", err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		logger.Error("failed to build webhook request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Error("failed to send webhook", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Error("webhook rejected", "status", resp.StatusCode)
	}
}

// FulfillmentReport is what the worker pool hands the fulfillment sink for
// each completed (successful or failed) request.
type FulfillmentReport struct {
	RequestID   string
	Success     bool
	TxHash      string
	BlockGap    int64
	DelayBlocks uint64
	Err         string
}

// SendFulfillment reports the outcome of one fulfillment attempt.
func (s *Sink) SendFulfillment(ctx context.Context, r FulfillmentReport) {
	fields := map[string]interface{}{
		"request_id": r.RequestID,
		"success":    r.Success,
		"tx_hash":    r.TxHash,
		"block_gap":  r.BlockGap,
	}
	msg := "fulfillment succeeded"
	if !r.Success {
		msg = "fulfillment failed: " + r.Err
	}
	s.Send(ctx, msg, fields)
}
