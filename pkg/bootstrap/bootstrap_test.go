package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRunPostsCredentialsAndParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "login" || pass != "secret" {
			t.Errorf("unexpected basic auth: %q/%q (ok=%v)", user, pass, ok)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if req.UEID != "ue-1" || req.Role != "vehicle" {
			t.Errorf("unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(Response{
			Protocols:      map[string]string{"mqtts": "tls://broker:8883"},
			IoT3ID:         "iot3-42",
			PSKRunLogin:    "run-login",
			PSKRunPassword: "run-pass",
		})
	}))
	defer srv.Close()

	resp, err := Run(context.Background(), Config{
		Endpoint:    srv.URL,
		UEID:        "ue-1",
		PSKLogin:    "login",
		PSKPassword: "secret",
		Role:        "vehicle",
		MaxElapsed:  time.Second,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.IoT3ID != "iot3-42" || resp.PSKRunLogin != "run-login" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRunDoesNotRetryOnBadStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), Config{
		Endpoint:   srv.URL,
		MaxElapsed: 2 * time.Second,
	})
	if err == nil {
		t.Fatalf("expected an error for a 401 response")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable status, got %d", calls)
	}
}

func TestSelectMQTTPrefersTLSOverClear(t *testing.T) {
	protocol, endpoint, ok := SelectMQTT(map[string]string{
		"mqtt":  "tcp://broker:1883",
		"mqtts": "tls://broker:8883",
	}, false)
	if !ok || protocol != "mqtts" || endpoint != "tls://broker:8883" {
		t.Fatalf("got (%q, %q, %v), want mqtts", protocol, endpoint, ok)
	}
}

func TestSelectMQTTPrefersNativeOverWebSocketAtSameTLSLevel(t *testing.T) {
	protocol, _, ok := SelectMQTT(map[string]string{
		"mqtt":    "tcp://broker:1883",
		"mqtt-ws": "ws://broker:80/mqtt",
	}, false)
	if !ok || protocol != "mqtt" {
		t.Fatalf("got protocol %q, want mqtt (native beats websocket at the same TLS level)", protocol)
	}
}

func TestSelectMQTTPrefersTLSOverNativeClear(t *testing.T) {
	protocol, _, ok := SelectMQTT(map[string]string{
		"mqtt-wss": "wss://broker:443/mqtt",
		"mqtt":     "tcp://broker:1883",
	}, false)
	if !ok || protocol != "mqtt-wss" {
		t.Fatalf("got protocol %q, want mqtt-wss (TLS beats clear-text even over websocket)", protocol)
	}
}

func TestSelectMQTTPrefersInternalWhenRequested(t *testing.T) {
	protocol, endpoint, ok := SelectMQTT(map[string]string{
		"mqtts":          "tls://public-broker:8883",
		"internal-mqtts": "tls://internal-broker:8883",
	}, true)
	if !ok || protocol != "internal-mqtts" || endpoint != "tls://internal-broker:8883" {
		t.Fatalf("got (%q, %q, %v), want internal-mqtts", protocol, endpoint, ok)
	}
}

func TestSelectOTLPFallsBackToHTTP(t *testing.T) {
	protocol, _, ok := SelectOTLP(map[string]string{
		"otlp-http": "http://collector:4318",
	}, false)
	if !ok || protocol != "otlp-http" {
		t.Fatalf("got protocol %q, want otlp-http", protocol)
	}
}

func TestSelectMQTTNoneAvailable(t *testing.T) {
	_, _, ok := SelectMQTT(map[string]string{}, false)
	if ok {
		t.Fatalf("expected no match for an empty protocol map")
	}
}
