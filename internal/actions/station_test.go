package actions

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStationExecuteSuccess(t *testing.T) {
	var received map[string]any
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode relay body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	executor := NewStationExecutor(relay.URL, 2*time.Second)
	result := executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "sendText",
		"text":       "привет",
	})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if received["command"] != "sendText" || received["text"] != "привет" {
		t.Fatalf("unexpected relay body: %+v", received)
	}
}

func TestStationExecuteCommandSpecificFields(t *testing.T) {
	var received map[string]any
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()
	executor := NewStationExecutor(relay.URL, 2*time.Second)

	result := executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "setVolume",
		"volume":     0.7,
	})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if received["volume"] != 0.7 {
		t.Fatalf("expected volume forwarded, got %+v", received)
	}

	result = executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "rewind",
		"position":   float64(42),
	})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if received["position"] != float64(42) {
		t.Fatalf("expected position forwarded, got %+v", received)
	}
}

func TestStationExecuteRelayError(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad device", http.StatusBadGateway)
	}))
	defer relay.Close()

	executor := NewStationExecutor(relay.URL, 2*time.Second)
	result := executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "play",
	})
	if result.OK {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "station relay error: 502") {
		t.Fatalf("expected status in error, got %q", result.Error)
	}
}

func TestStationExecuteConnectionRefused(t *testing.T) {
	// Reserve a port, then close the listener so nothing accepts.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	executor := NewStationExecutor("http://"+addr, 2*time.Second)
	result := executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "stop",
	})
	if result.OK {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.Error != "station relay unavailable" {
		t.Fatalf("expected legible refusal, got %q", result.Error)
	}
}

func TestStationExecuteTimeout(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer relay.Close()

	executor := NewStationExecutor(relay.URL, 200*time.Millisecond)
	started := time.Now()
	result := executor.Execute(context.Background(), map[string]any{
		"oauthToken": "tok",
		"deviceId":   "station-1",
		"command":    "next",
	})
	if result.OK {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.Error != "station relay request timeout" {
		t.Fatalf("expected legible timeout, got %q", result.Error)
	}
	if time.Since(started) > 1500*time.Millisecond {
		t.Fatalf("timeout not bounded: %v", time.Since(started))
	}
}

func TestStationExecuteMissingParams(t *testing.T) {
	executor := NewStationExecutor("http://relay", time.Second)
	result := executor.Execute(context.Background(), map[string]any{"command": "play"})
	if result.OK {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !strings.Contains(result.Error, "oauthToken") {
		t.Fatalf("expected missing-parameter message, got %q", result.Error)
	}
}
