// Package bootstrap implements the fabric's configuration handshake:
// a node POSTs its install-time credentials to a bootstrap endpoint
// and receives back the run-time protocol endpoints and credentials it
// should actually connect with.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Config describes how to reach the bootstrap endpoint and the
// install-time identity to authenticate with.
type Config struct {
	Endpoint string // full URL of the bootstrap endpoint

	UEID        string
	PSKLogin    string
	PSKPassword string
	Role        string

	// MaxElapsed bounds how long Run retries before giving up; zero
	// means retry forever.
	MaxElapsed time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Response is the bootstrap endpoint's reply: the run-time protocol
// endpoints to use, a fabric-assigned identity, and run-time
// credentials distinct from the install-time ones used to authenticate
// the handshake itself.
type Response struct {
	Protocols      map[string]string `json:"protocols"`
	IoT3ID         string            `json:"iot3_id"`
	PSKRunLogin    string            `json:"psk_run_login"`
	PSKRunPassword string            `json:"psk_run_password"`
}

type request struct {
	UEID        string `json:"ue_id"`
	PSKLogin    string `json:"psk_login"`
	PSKPassword string `json:"psk_password"`
	Role        string `json:"role"`
}

// Run performs the bootstrap handshake, retrying transport failures
// with exponential backoff (Configuration errors — a non-2xx response
// or malformed body — are returned immediately and are not retried,
// since retrying them can never succeed).
func Run(ctx context.Context, cfg Config) (*Response, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(request{
		UEID:        cfg.UEID,
		PSKLogin:    cfg.PSKLogin,
		PSKPassword: cfg.PSKPassword,
		Role:        cfg.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: encoding request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	var boWithCtx backoff.BackOff = backoff.WithContext(bo, ctx)

	var resp *Response
	op := func() error {
		r, err := doRequest(ctx, client, cfg, body)
		if err != nil {
			cfg.Logger.Debug().Err(err).Msg("bootstrap: request failed, retrying")
			return err
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, boWithCtx); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return resp, nil
}

func doRequest(ctx context.Context, client *http.Client, cfg Config, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.PSKLogin, cfg.PSKPassword)

	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err // transport error: retryable
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err // transport error: retryable
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, backoff.Permanent(fmt.Errorf("bootstrap endpoint returned %d: %s", httpResp.StatusCode, respBody))
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return &parsed, nil
}

// mqttProtocolPriority and otlpProtocolPriority are tried in order;
// within each, the TLS variant is always tried before its clear-text
// fallback, and native MQTT before its WebSocket fallback.
var mqttProtocolPriority = []string{"mqtts", "mqtt-wss", "mqtt", "mqtt-ws"}
var otlpProtocolPriority = []string{"otlp-https", "otlp-http"}

// SelectMQTT picks the best MQTT endpoint out of a bootstrap response's
// protocol map, preferring TLS over clear-text and native MQTT over
// WebSockets. When preferInternal is set, an "internal-" prefixed
// variant of a given protocol is tried before its public counterpart.
func SelectMQTT(protocols map[string]string, preferInternal bool) (protocol, endpoint string, ok bool) {
	return selectProtocol(protocols, mqttProtocolPriority, preferInternal)
}

// SelectOTLP picks the best OTLP/HTTP collector endpoint out of a
// bootstrap response's protocol map, with the same TLS and internal
// preference rules as SelectMQTT.
func SelectOTLP(protocols map[string]string, preferInternal bool) (protocol, endpoint string, ok bool) {
	return selectProtocol(protocols, otlpProtocolPriority, preferInternal)
}

func selectProtocol(protocols map[string]string, priority []string, preferInternal bool) (string, string, bool) {
	for _, name := range priority {
		order := []string{name, "internal-" + name}
		if preferInternal {
			order = []string{"internal-" + name, name}
		}
		for _, key := range order {
			if v, ok := protocols[key]; ok && v != "" {
				return key, v, true
			}
		}
	}
	return "", "", false
}
