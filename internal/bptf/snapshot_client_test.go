package bptf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSnapshotClient_GetSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classifieds/listings/snapshot" {
			t.Errorf("path = %s, want /classifieds/listings/snapshot", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("token") != "tok" {
			t.Errorf("token = %q, want tok", q.Get("token"))
		}
		if q.Get("appid") != "440" {
			t.Errorf("appid = %q, want 440", q.Get("appid"))
		}
		if q.Get("sku") != "Mann Co. Supply Crate Key" {
			t.Errorf("sku = %q, want Mann Co. Supply Crate Key", q.Get("sku"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"listings": [{"steamid": "1", "intent": "sell", "price": "53.11",
			"bump": 1700000000, "item": {"id": "9", "defindex": 5021}}], "createdAt": 1700000001}`))
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL, "tok", WithRateLimit(0, 0))

	resp, err := client.GetSnapshot(context.Background(), "Mann Co. Supply Crate Key")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(resp.Listings) != 1 {
		t.Fatalf("len(Listings) = %d, want 1", len(resp.Listings))
	}
	if resp.Listings[0].Item.Defindex != 5021 {
		t.Errorf("Defindex = %d, want 5021", resp.Listings[0].Item.Defindex)
	}
}

func TestSnapshotClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantServer bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message": "nope"}`))
			}))
			defer server.Close()

			client := NewSnapshotClient(server.URL, "tok", WithRateLimit(0, 0))
			_, err := client.GetSnapshot(context.Background(), "Item")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.IsServerError() != tt.wantServer {
				t.Errorf("IsServerError() = %v, want %v", apiErr.IsServerError(), tt.wantServer)
			}
		})
	}
}

func TestSnapshotClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"listings": "oops"`))
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL, "tok", WithRateLimit(0, 0))
	_, err := client.GetSnapshot(context.Background(), "Item")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestSnapshotClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"listings": []}`))
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL, "tok", WithRateLimit(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.GetSnapshot(ctx, "Item"); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func TestSnapshotClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"listings": []}`))
	}))
	defer server.Close()

	// 10 rps, burst 1: the third request waits at least ~200ms in total.
	client := NewSnapshotClient(server.URL, "tok", WithRateLimit(10, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetSnapshot(context.Background(), "Item"); err != nil {
			t.Fatalf("GetSnapshot: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 150ms", elapsed)
	}
}
