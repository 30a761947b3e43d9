package bptf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStreamClient_Messages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`[{"event":"listing-delete","payload":{"id":"440_1","item":{"defindex":1}}}]`))
		conn.WriteMessage(websocket.TextMessage, []byte(`[]`))

		// Keep connection open until client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := DialStream(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer client.Close()

	for i := 0; i < 2; i++ {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				t.Fatalf("channel closed early: %v", client.Err())
			}
			if len(msg.Data) == 0 {
				t.Error("empty message")
			}
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not set")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}

	if client.Err() != nil {
		t.Errorf("Err() = %v, want nil while open", client.Err())
	}
}

func TestStreamClient_ServerDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	client, err := DialStream(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}
	defer client.Close()

	select {
	case _, ok := <-client.Messages():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if err := client.Err(); err == nil || errors.Is(err, ErrStreamClosed) {
		t.Errorf("Err() = %v, want read error", err)
	}
}

func TestStreamClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := DialStream(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialStream: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Second close is a no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, ok := <-client.Messages(); ok {
		t.Error("expected closed channel after Close")
	}
	if !errors.Is(client.Err(), ErrStreamClosed) {
		t.Errorf("Err() = %v, want ErrStreamClosed", client.Err())
	}
}

func TestStreamClient_DialFailure(t *testing.T) {
	_, err := DialStream(context.Background(), "ws://127.0.0.1:1/events", &StreamConfig{
		HandshakeTimeout: 200 * time.Millisecond,
		PingInterval:     time.Second,
		ReadTimeout:      time.Second,
		WriteTimeout:     time.Second,
		BufferSize:       1,
	})
	if err == nil {
		t.Error("expected dial error")
	}
}

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()
	if cfg.PingInterval >= cfg.ReadTimeout {
		t.Errorf("PingInterval %v should be below ReadTimeout %v", cfg.PingInterval, cfg.ReadTimeout)
	}
	if cfg.BufferSize <= 0 {
		t.Errorf("BufferSize = %d, want > 0", cfg.BufferSize)
	}
}
