// Package chain wraps go-ethereum's ethclient/rpc with the multi-endpoint,
// error-classifying transport the engine needs, grounded on the
// CallContext-wrapping shape of client/bridge_client.go.
package chain

import "fmt"

// TransportError means the request never reached the chain (dial failure,
// timeout, connection reset). Callers should retry against another endpoint.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chain: transport error against %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RpcError wraps a well-formed JSON-RPC error response. Some RPC errors are
// benign and expected under load (see defaultSuppressedSubstrings);
// Suppressed reports whether Err's message matches a configured suppression
// substring, in which case the caller should log at debug and move on rather
// than alert.
type RpcError struct {
	Endpoint   string
	Err        error
	Suppressed bool
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("chain: rpc error from %s: %v", e.Endpoint, e.Err)
}

func (e *RpcError) Unwrap() error { return e.Err }

// defaultSuppressedSubstrings lists RPC error text that is routine noise
// under concurrent multi-send fulfillment, not worth alerting on: a
// testnet host's generic "Client Error" response, and the "after last
// accepted block" log-fetch error some providers return for a range that
// has not been indexed yet.
var defaultSuppressedSubstrings = []string{
	"Client Error",
	"after last accepted block",
}

func isSuppressed(msg string, extra []string) bool {
	for _, s := range defaultSuppressedSubstrings {
		if containsFold(msg, s) {
			return true
		}
	}
	for _, s := range extra {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	h, n := []rune(haystack), []rune(needle)
	if len(n) == 0 || len(n) > len(h) {
		return len(n) == 0
	}
	lower := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			if lower(h[i+j]) != lower(n[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
