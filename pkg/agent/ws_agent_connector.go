// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketAgentConnector is the client side version of the WebSocketAgent, used by
// tools talking to a daemon.
type WebSocketAgentConnector struct {
	conn *websocket.Conn

	msgOutChan chan webAgentMessage
	msgOutErr  chan error

	msgInDatagramChan chan []byte
	msgInStateChan    chan StateMessage

	closeSyn chan struct{}
	closeAck chan struct{}
}

// NewWebSocketAgentConnector creates a new WebSocketAgentConnector connection to a
// WebSocketAgent, registering the given client name.
func NewWebSocketAgentConnector(apiUrl, name string) (wac *WebSocketAgentConnector, err error) {
	var conn *websocket.Conn
	if conn, _, err = websocket.DefaultDialer.Dial(apiUrl, nil); err != nil {
		return
	}

	wac = &WebSocketAgentConnector{
		conn: conn,

		msgOutChan: make(chan webAgentMessage),
		msgOutErr:  make(chan error),

		msgInDatagramChan: make(chan []byte, 32),
		msgInStateChan:    make(chan StateMessage, 1),

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	if err = wac.registerName(name); err != nil {
		wac = nil
		return
	}

	go wac.handler()
	go wac.handleReader()

	return
}

func (wac *WebSocketAgentConnector) writeMessage(msg webAgentMessage) error {
	wc, wcErr := wac.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

func (wac *WebSocketAgentConnector) readMessage() (msg webAgentMessage, err error) {
	if mt, r, rErr := wac.conn.NextReader(); rErr != nil {
		err = rErr
		return
	} else if mt != websocket.BinaryMessage {
		err = fmt.Errorf("expected binary message, got %d", mt)
		return
	} else {
		msg, err = unmarshalCbor(r)
		return
	}
}

func (wac *WebSocketAgentConnector) registerName(name string) error {
	if err := wac.writeMessage(newRegisterMessage(name)); err != nil {
		return err
	}

	if msg, err := wac.readMessage(); err != nil {
		return err
	} else if status, ok := msg.(*wamStatus); !ok {
		return fmt.Errorf("expected wamStatus, got %T", msg)
	} else if status.errorMsg != "" {
		return fmt.Errorf("received non-empty error message: %s", status.errorMsg)
	} else {
		return nil
	}
}

func (wac *WebSocketAgentConnector) handleReader() {
	defer close(wac.msgInDatagramChan)

	for {
		if msg, err := wac.readMessage(); err != nil {
			return
		} else {
			switch msg := msg.(type) {
			case *wamDatagram:
				select {
				case wac.msgInDatagramChan <- msg.payload:
				default:
					// Nobody reads datagrams; dropping beats stalling the reader.
				}

			case *wamState:
				select {
				case wac.msgInStateChan <- msg.stateMessage():
				default:
					// A stale snapshot sits in the buffer; the fresh one replaces it.
					select {
					case <-wac.msgInStateChan:
					default:
					}
					wac.msgInStateChan <- msg.stateMessage()
				}

			default:
			}
		}
	}
}

func (wac *WebSocketAgentConnector) handler() {
	defer func() {
		close(wac.closeAck)

		close(wac.msgOutChan)
		close(wac.msgOutErr)

		_ = wac.conn.Close()
	}()

	for {
		select {
		case <-wac.closeSyn:
			return

		case msg := <-wac.msgOutChan:
			wac.msgOutErr <- wac.writeMessage(msg)
		}
	}
}

// WriteDatagram sends a payload to the daemon, which forwards it to the peer.
func (wac *WebSocketAgentConnector) WriteDatagram(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	wac.msgOutChan <- newDatagramMessage(payload)
	return <-wac.msgOutErr
}

// ReadDatagram returns the next inbound payload. This method blocks.
func (wac *WebSocketAgentConnector) ReadDatagram() (payload []byte, err error) {
	payload, ok := <-wac.msgInDatagramChan
	if !ok {
		err = fmt.Errorf("connection is closed")
	}
	return
}

// State requests a fresh Session snapshot from the daemon. An answer or an error after
// a timeout will be returned.
func (wac *WebSocketAgentConnector) State(timeout time.Duration) (state StateMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	// Flush a stale snapshot; everything arriving now is fresh enough.
	select {
	case <-wac.msgInStateChan:
	default:
	}

	wac.msgOutChan <- newStateRequestMessage()
	if err = <-wac.msgOutErr; err != nil {
		return
	}

	select {
	case state = <-wac.msgInStateChan:
		return

	case <-time.After(timeout):
		err = fmt.Errorf("state response timed out")
		return
	}
}

// Close this WebSocketAgentConnector.
func (wac *WebSocketAgentConnector) Close() {
	defer func() {
		// channel is already closed
		_ = recover()
	}()

	close(wac.closeSyn)
	<-wac.closeAck
}
