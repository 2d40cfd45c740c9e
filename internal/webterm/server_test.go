package webterm

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServerSingleClientRejectsSecondUpgrade(t *testing.T) {
	var buf bytes.Buffer
	bridge := NewMirroredTerminal(&buf, 0)
	srv := NewServer(bridge, nil, nil)

	addr := freeAddr(t)
	if errs := srv.ApplyBindings([]string{addr}); len(errs) != 0 {
		t.Fatalf("unexpected bind errors: %v", errs)
	}
	defer srv.Stop()

	time.Sleep(20 * time.Millisecond) // let the listener goroutine start serving

	url := "ws://" + addr + "/ws"
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	time.Sleep(20 * time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second connection to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %+v", resp)
	}
}

func TestServerInputRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bridge := NewMirroredTerminal(&buf, 0)

	var received []byte
	done := make(chan struct{})
	bridge.SetInputHandler(func(data []byte) {
		received = data
		close(done)
	})

	srv := NewServer(bridge, nil, nil)
	addr := freeAddr(t)
	if errs := srv.ApplyBindings([]string{addr}); len(errs) != 0 {
		t.Fatalf("unexpected bind errors: %v", errs)
	}
	defer srv.Stop()
	time.Sleep(20 * time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(frame{Type: "input", Data: "echo hi\n"})
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
		if string(received) != "echo hi\n" {
			t.Errorf("expected %q, got %q", "echo hi\n", received)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input to reach the handler")
	}
}

func TestServerApplyBindingsRemovesStaleListeners(t *testing.T) {
	var buf bytes.Buffer
	bridge := NewMirroredTerminal(&buf, 0)
	srv := NewServer(bridge, nil, nil)

	addr := freeAddr(t)
	srv.ApplyBindings([]string{addr})
	if len(srv.LiveAddresses()) != 1 {
		t.Fatalf("expected 1 live address, got %d", len(srv.LiveAddresses()))
	}

	srv.ApplyBindings(nil)
	if len(srv.LiveAddresses()) != 0 {
		t.Fatalf("expected 0 live addresses after removal, got %d", len(srv.LiveAddresses()))
	}
}
