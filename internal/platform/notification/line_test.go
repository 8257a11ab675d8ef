package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLineGateway_SendPush(t *testing.T) {
	var got linePushRequest
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewLineGateway(srv.URL, "channel-token", time.Second)
	if err := g.SendPush(context.Background(), "U123", "Low score: LAB-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer channel-token" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
	if contentType != "application/json" {
		t.Errorf("unexpected Content-Type %q", contentType)
	}
	if got.To != "U123" || len(got.Messages) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Messages[0].Type != "text" || got.Messages[0].Text != "Low score: LAB-01" {
		t.Errorf("unexpected message: %+v", got.Messages[0])
	}
}

func TestLineGateway_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The property, 'to', in the request body is invalid"}` + strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	err := NewLineGateway(srv.URL, "t", time.Second).SendPush(context.Background(), "bad", "hi")
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if de.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", de.StatusCode)
	}
	if len(de.Body) != 1024 {
		t.Errorf("expected body excerpt capped at 1KB, got %d bytes", len(de.Body))
	}
}

func TestLineGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewLineGateway(srv.URL, "t", 50*time.Millisecond).SendPush(context.Background(), "U1", "hi")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestLineGateway_NotConfigured(t *testing.T) {
	err := NewLineGateway("", "", time.Second).SendPush(context.Background(), "U1", "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLineGateway_DefaultURL(t *testing.T) {
	g := NewLineGateway("", "t", time.Second)
	if g.url != DefaultLineAPIURL {
		t.Errorf("expected default url, got %s", g.url)
	}
}

func TestMockPushSender_FailFor(t *testing.T) {
	m := &MockPushSender{FailFor: map[string]bool{"U2": true}, FailError: "line down"}
	if err := m.SendPush(context.Background(), "U1", "a"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.SendPush(context.Background(), "U2", "b"); err == nil {
		t.Error("expected failure for U2")
	}
	if len(m.Calls()) != 2 {
		t.Errorf("expected both calls recorded, got %d", len(m.Calls()))
	}
}
