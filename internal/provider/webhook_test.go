package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookProvider_Send(t *testing.T) {
	t.Run("posts the message and returns the gateway id", func(t *testing.T) {
		var gotTo, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			var req struct {
				To   string `json:"to"`
				Body string `json:"body"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			gotTo, gotBody = req.To, req.Body
			json.NewEncoder(w).Encode(map[string]string{"message_id": "gw-123"})
		}))
		defer srv.Close()

		p := NewWebhookProvider(srv.URL, 5*time.Second)
		id, err := p.Send(context.Background(), "+905551234567", "hello")
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if id != "gw-123" {
			t.Fatalf("expected gw-123, got %q", id)
		}
		if gotTo != "+905551234567" || gotBody != "hello" {
			t.Fatalf("unexpected request: to=%q body=%q", gotTo, gotBody)
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway busy", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := NewWebhookProvider(srv.URL, 5*time.Second)
		if _, err := p.Send(context.Background(), "+90555", "hello"); err == nil {
			t.Fatal("expected error for 503")
		}
	})

	t.Run("missing message id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		p := NewWebhookProvider(srv.URL, 5*time.Second)
		if _, err := p.Send(context.Background(), "+90555", "hello"); err == nil {
			t.Fatal("expected error for missing message_id")
		}
	})
}
