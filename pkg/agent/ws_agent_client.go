// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

// webSocketAgentClient is the server side handle of one connected WebSocket client.
type webSocketAgentClient struct {
	sync.Mutex

	conn     *websocket.Conn
	name     string
	receiver chan Message
	sender   chan Message

	shutdownOnce sync.Once
}

func newWebSocketAgentClient(conn *websocket.Conn) *webSocketAgentClient {
	return &webSocketAgentClient{
		conn:     conn,
		receiver: make(chan Message),
		sender:   make(chan Message),
	}
}

func (client *webSocketAgentClient) start() {
	go client.handleReceiver()
	client.handleConn()
}

func (client *webSocketAgentClient) shutdown() {
	client.shutdownOnce.Do(func() {
		client.logger().Debug("Reached shutdown")

		close(client.sender)
		_ = client.conn.Close()
	})
}

func (client *webSocketAgentClient) logger() *log.Entry {
	return log.WithField("ws agent client", client.conn.RemoteAddr().String())
}

// handleReceiver forwards Messages from the daemon to the connected client.
func (client *webSocketAgentClient) handleReceiver() {
	defer client.shutdown()

	for msg := range client.receiver {
		switch msg := msg.(type) {
		case ShutdownMessage:
			client.logger().Debug("Received Shutdown")
			return

		case DatagramMessage:
			if err := client.writeMessage(newDatagramMessage(msg.Payload)); err != nil {
				client.logger().WithError(err).Warn("Sending datagram errored")
				return
			}
			client.logger().WithField("bytes", len(msg.Payload)).Debug("Sent datagram to client")

		case StateMessage:
			if err := client.writeMessage(newStateMessage(msg)); err != nil {
				client.logger().WithError(err).Warn("Sending state errored")
				return
			}
			client.logger().WithField("state", msg.State).Debug("Sent state to client")

		default:
			client.logger().WithField("message", msg).Info("Received unknown / unsupported message")
		}
	}
}

// handleConn dispatches the client's inbound WebSocket messages.
func (client *webSocketAgentClient) handleConn() {
	defer client.shutdown()

	for {
		if messageType, reader, err := client.conn.NextReader(); err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Err.Error() == "use of closed network connection" {
				client.logger().WithError(err).Debug("Reader errored due to closed network connection")
			} else {
				client.logger().WithError(err).Debug("Opening next WebSocket Reader errored")
			}
			return
		} else if messageType != websocket.BinaryMessage {
			client.logger().WithField("message type", messageType).Warn("WebSocket Reader's type is not binary")
			return
		} else if msg, err := unmarshalCbor(reader); err != nil {
			client.logger().WithError(err).Warn("Unmarshal CBOR errored")
			return
		} else {
			switch msg := msg.(type) {
			case *wamRegister:
				regErr := client.handleIncomingRegister(msg)
				if err := client.acknowledgeIncoming(regErr); err != nil {
					client.logger().WithError(err).Warn("Handling registration errored")
					return
				}

			case *wamDatagram:
				client.logger().WithField("bytes", len(msg.payload)).Debug("Received datagram")
				client.sender <- DatagramMessage{Payload: msg.payload}

			case *wamStateRequest:
				client.logger().Debug("Received state request")
				client.Lock()
				name := client.name
				client.Unlock()
				client.sender <- StateRequestMessage{Sender: name}

			default:
				client.logger().WithField("message", msg).Info("Received unknown / unsupported message")
			}
		}
	}
}

func (client *webSocketAgentClient) handleIncomingRegister(m *wamRegister) error {
	client.Lock()
	defer client.Unlock()

	logger := client.logger().WithField("name", m.name)

	if client.name != "" {
		msg := "register errored, a name is already present"
		logger.Warn(msg)
		return errors.New(msg)
	}
	if m.name == "" {
		msg := "register errored, the name is empty"
		logger.Warn(msg)
		return errors.New(msg)
	}

	logger.Debug("Setting client name")
	client.name = m.name
	return nil
}

func (client *webSocketAgentClient) acknowledgeIncoming(err error) error {
	if writeErr := client.writeMessage(newStatusMessage(err)); writeErr != nil {
		return writeErr
	} else {
		return err
	}
}

func (client *webSocketAgentClient) writeMessage(msg webAgentMessage) error {
	client.Lock()
	defer client.Unlock()

	wc, wcErr := client.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

func (client *webSocketAgentClient) Names() []string {
	client.Lock()
	defer client.Unlock()

	if client.name == "" {
		return nil
	}
	return []string{client.name}
}

func (client *webSocketAgentClient) MessageReceiver() chan Message {
	return client.receiver
}

func (client *webSocketAgentClient) MessageSender() chan Message {
	return client.sender
}
