// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

func TestWebAgentNew(t *testing.T) {
	log.SetLevel(log.DebugLevel)

	// Start WebSocketAgent server
	addr := fmt.Sprintf("localhost:%d", randomPort(t))
	ws := NewWebSocketAgent()

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ws", ws.ServeHTTP)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: httpMux,
	}
	go func() { _ = httpServer.ListenAndServe() }()

	// Let the WebSocketAgent start..
	time.Sleep(250 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		if isAddrReachable(addr) {
			break
		} else if i == 3 {
			t.Fatal("SocketAgent seems to be unreachable")
		}
	}

	// Connect dummy client
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   "/ws",
	}
	wsClient, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Register client
	if w, err := wsClient.NextWriter(websocket.BinaryMessage); err != nil {
		t.Fatal(err)
	} else if err := marshalCbor(newRegisterMessage("worker"), w); err != nil {
		t.Fatal(err)
	} else if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Check registration
	if mt, r, err := wsClient.NextReader(); err != nil {
		t.Fatal(err)
	} else if mt != websocket.BinaryMessage {
		t.Fatalf("expected message type %v, got %v", websocket.BinaryMessage, mt)
	} else if msg, err := unmarshalCbor(r); err != nil {
		t.Fatal(err)
	} else if msg.typeCode() != wamStatusCode {
		t.Fatalf("expected status code %d, got %d", wamStatusCode, msg.typeCode())
	} else if msg := msg.(*wamStatus); msg.errorMsg != "" {
		t.Fatal(msg.errorMsg)
	}

	// Send datagram to client
	payload := []byte("hello worker")
	ws.MessageReceiver() <- DatagramMessage{Payload: payload}

	// Client checks received datagram
	if mt, r, err := wsClient.NextReader(); err != nil {
		t.Fatal(err)
	} else if mt != websocket.BinaryMessage {
		t.Fatalf("expected message type %v, got %v", websocket.BinaryMessage, mt)
	} else if msg, err := unmarshalCbor(r); err != nil {
		t.Fatal(err)
	} else if msg.typeCode() != wamDatagramCode {
		t.Fatalf("expected datagram code %d, got %d", wamDatagramCode, msg.typeCode())
	} else if recv := msg.(*wamDatagram).payload; !bytes.Equal(payload, recv) {
		t.Fatalf("expected %x, got %x", payload, recv)
	}

	// Send datagram from client
	payload = []byte("hello daemon")
	if w, err := wsClient.NextWriter(websocket.BinaryMessage); err != nil {
		t.Fatal(err)
	} else if err := marshalCbor(newDatagramMessage(payload), w); err != nil {
		t.Fatal(err)
	} else if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Server checks received datagram
	select {
	case msg := <-ws.MessageSender():
		if msg, ok := msg.(DatagramMessage); !ok {
			t.Fatalf("Message is not a DatagramMessage; %v", msg)
		} else if !bytes.Equal(payload, msg.Payload) {
			t.Fatalf("expected %x, got %x", payload, msg.Payload)
		}

	case <-time.After(500 * time.Millisecond):
		t.Fatal("datagram reception timed out")
	}

	// Send state request from client
	if w, err := wsClient.NextWriter(websocket.BinaryMessage); err != nil {
		t.Fatal(err)
	} else if err := marshalCbor(newStateRequestMessage(), w); err != nil {
		t.Fatal(err)
	} else if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Server responds to the state request
	state := StateMessage{State: "connected", Local: 0x80000023, Peer: 0x80000042, Method: "network"}

	select {
	case msg := <-ws.MessageSender():
		if msg, ok := msg.(StateRequestMessage); !ok {
			t.Fatalf("Message is not a StateRequestMessage; %v", msg)
		} else if msg.Sender != "worker" {
			t.Fatalf("expected sender of \"worker\", not %s", msg.Sender)
		} else {
			ws.MessageReceiver() <- state
		}

	case <-time.After(500 * time.Millisecond):
		t.Fatal("state request reception timed out")
	}

	// Client checks the state answer
	if mt, r, err := wsClient.NextReader(); err != nil {
		t.Fatal(err)
	} else if mt != websocket.BinaryMessage {
		t.Fatalf("expected message type %v, got %v", websocket.BinaryMessage, mt)
	} else if msg, err := unmarshalCbor(r); err != nil {
		t.Fatal(err)
	} else if msg.typeCode() != wamStateCode {
		t.Fatalf("expected state code %d, got %d", wamStateCode, msg.typeCode())
	} else if recv := msg.(*wamState).stateMessage(); !reflect.DeepEqual(state, recv) {
		t.Fatalf("expected %v, got %v", state, recv)
	}

	// Shutdown WebSocketAgent with all its child processes
	ws.MessageReceiver() <- ShutdownMessage{}
}

func TestWebAgentEmptyName(t *testing.T) {
	log.SetLevel(log.DebugLevel)

	// Start WebSocketAgent server
	addr := fmt.Sprintf("localhost:%d", randomPort(t))
	ws := NewWebSocketAgent()

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ws", ws.ServeHTTP)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: httpMux,
	}
	go func() { _ = httpServer.ListenAndServe() }()

	// Let the WebSocketAgent start..
	time.Sleep(250 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		if isAddrReachable(addr) {
			break
		} else if i == 3 {
			t.Fatal("SocketAgent seems to be unreachable")
		}
	}

	// Connect dummy client
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   "/ws",
	}
	wsClient, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Register client with an empty name
	if w, err := wsClient.NextWriter(websocket.BinaryMessage); err != nil {
		t.Fatal(err)
	} else if err := marshalCbor(newRegisterMessage(""), w); err != nil {
		t.Fatal(err)
	} else if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Check registration
	if mt, r, err := wsClient.NextReader(); err != nil {
		t.Fatal(err)
	} else if mt != websocket.BinaryMessage {
		t.Fatalf("expected message type %v, got %v", websocket.BinaryMessage, mt)
	} else if msg, err := unmarshalCbor(r); err != nil {
		t.Fatal(err)
	} else if msg.typeCode() != wamStatusCode {
		t.Fatalf("expected status code %d, got %d", wamStatusCode, msg.typeCode())
	} else if msg := msg.(*wamStatus); msg.errorMsg == "" {
		t.Fatal("Expected error due to an empty name")
	}

	// Shutdown WebSocketAgent
	ws.MessageReceiver() <- ShutdownMessage{}
}

func TestWebAgentConnector(t *testing.T) {
	log.SetLevel(log.DebugLevel)

	// Start WebSocketAgent server
	addr := fmt.Sprintf("localhost:%d", randomPort(t))
	ws := NewWebSocketAgent()

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ws", ws.ServeHTTP)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: httpMux,
	}
	go func() { _ = httpServer.ListenAndServe() }()

	// Let the WebSocketAgent start..
	time.Sleep(250 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		if isAddrReachable(addr) {
			break
		} else if i == 3 {
			t.Fatal("SocketAgent seems to be unreachable")
		}
	}

	// Attach Connector
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   "/ws",
	}
	wac, wacErr := NewWebSocketAgentConnector(u.String(), "worker")
	if wacErr != nil {
		t.Fatal(wacErr)
	}

	payload := []byte("hello daemon")
	if err := wac.WriteDatagram(payload); err != nil {
		t.Fatal(err)
	}

	time.Sleep(250 * time.Millisecond)

	select {
	case msg := <-ws.MessageSender():
		if dMsg, ok := msg.(DatagramMessage); !ok {
			t.Fatalf("expected DatagramMessage, got %T", msg)
		} else if !bytes.Equal(payload, dMsg.Payload) {
			t.Fatalf("expected %x, got %x", payload, dMsg.Payload)
		}

	case <-time.After(500 * time.Millisecond):
		t.Fatal("WebSocketAgent did not received message; time out")
	}

	payload = []byte("hello worker")
	ws.MessageReceiver() <- DatagramMessage{Payload: payload}

	time.Sleep(250 * time.Millisecond)

	fin := make(chan struct{})
	go func() {
		if recv, err := wac.ReadDatagram(); err != nil {
			return
		} else if !bytes.Equal(payload, recv) {
			return
		}

		// fin will only be closed iff no error occurred. Otherwise the timeout below will hit.
		close(fin)
	}()

	select {
	case <-fin:
		break
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}

	state := StateMessage{State: "connected", Local: 0x80000023, Peer: 0x80000042, Method: "network"}
	go func() {
		msg := <-ws.MessageSender()
		if _, ok := msg.(StateRequestMessage); ok {
			ws.MessageReceiver() <- state
		}
	}()

	if recv, err := wac.State(time.Second); err != nil {
		t.Fatal(err)
	} else if !reflect.DeepEqual(state, recv) {
		t.Fatalf("expected %v, got %v", state, recv)
	}

	wac.Close()

	// Let the WebSocketAgent act on the closed connection
	time.Sleep(250 * time.Millisecond)

	ws.MessageReceiver() <- ShutdownMessage{}

	// Let the WebSocketAgent shut itself down
	time.Sleep(250 * time.Millisecond)
}
