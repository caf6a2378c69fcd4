// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package quicport provides a port.Port over QUIC's unreliable datagram extension,
// RFC 9221, for endpoints sharing an IP network.
//
// Both endpoints listen and dial symmetrically; whichever connections come up carry
// traffic. Duplicate connections duplicate datagrams, which the Port contract allows.
// The peer's address is either configured statically or found through a multicast
// beacon on the local network, see Finder.
//
// QUIC datagrams may be dropped by the stack and are never retransmitted. That is the
// point: the protocol above assumes a lossy carrier and the transport must not sneak
// reliability underneath it.
package quicport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/port"
)

// dialBackoff is the pause between two dial attempts against an absent peer.
const dialBackoff = 500 * time.Millisecond

// PeerAuto selects the multicast beacon instead of a static peer address.
const PeerAuto = "auto"

// Endpoint is a port.Port exchanging datagrams over QUIC connections.
type Endpoint struct {
	identity      uint32
	listenAddress string

	udpConn  net.PacketConn
	listener *quic.Listener
	finder   *Finder

	dialCtx    context.Context
	dialCancel context.CancelFunc

	mutex   sync.Mutex
	conns   map[quic.Connection]struct{}
	dialing map[string]struct{}
	closed  bool

	slot port.Slot

	closedSyn chan struct{}
	wg        sync.WaitGroup
}

// New creates an Endpoint listening on listenAddress. The peer argument is a static
// "host:port" to dial, PeerAuto for the multicast beacon, or empty to only accept
// inbound connections. The identity tags the beacon so an Endpoint can skip itself.
func New(listenAddress, peer string, identity uint32) (*Endpoint, error) {
	udpConn, err := listenPacketConn(listenAddress)
	if err != nil {
		return nil, err
	}

	listener, err := quic.Listen(udpConn, listenerTLSConfig(), quicConfig())
	if err != nil {
		_ = udpConn.Close()
		return nil, err
	}

	dialCtx, dialCancel := context.WithCancel(context.Background())
	e := &Endpoint{
		identity:      identity,
		listenAddress: listenAddress,
		udpConn:       udpConn,
		listener:      listener,
		dialCtx:       dialCtx,
		dialCancel:    dialCancel,
		conns:         make(map[quic.Connection]struct{}),
		dialing:       make(map[string]struct{}),
		closedSyn:     make(chan struct{}),
	}

	e.wg.Add(1)
	go e.accepter()

	switch peer {
	case "":

	case PeerAuto:
		finder, err := newFinder(e, udpConn.LocalAddr())
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.finder = finder

	default:
		e.dialPeer(peer)
	}

	e.logger().Info("Endpoint is up")

	return e, nil
}

// accepter takes inbound connections from the listener.
func (e *Endpoint) accepter() {
	defer e.wg.Done()

	for {
		conn, err := e.listener.Accept(context.Background())
		if errors.Is(err, quic.ErrServerClosed) {
			return
		} else if err != nil {
			e.logger().WithError(err).Warn("Accepting QUIC connection errored")
			continue
		}

		e.logger().WithField("peer", conn.RemoteAddr()).Info("Accepted QUIC connection")

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.receiver(conn)
		}()
	}
}

// dialPeer starts a background dialer for a peer address, unless one runs already.
func (e *Endpoint) dialPeer(target string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return
	}
	if _, ok := e.dialing[target]; ok {
		return
	}
	e.dialing[target] = struct{}{}

	e.wg.Add(1)
	go e.dialer(target)
}

// dialer connects to a peer, feeds its connection to the receiver and redials after
// the connection died. It ends when the Endpoint closes.
func (e *Endpoint) dialer(target string) {
	defer e.wg.Done()

	for {
		select {
		case <-e.closedSyn:
			return
		default:
		}

		conn, err := quic.DialAddr(e.dialCtx, target, dialerTLSConfig(), quicConfig())
		if err != nil {
			e.logger().WithError(err).WithField("peer", target).Debug("Dialing peer failed")

			select {
			case <-e.closedSyn:
				return
			case <-time.After(dialBackoff):
				continue
			}
		}

		e.logger().WithField("peer", conn.RemoteAddr()).Info("Dialed QUIC connection")
		e.receiver(conn)
	}
}

// receiver registers a connection and pumps its datagrams into the buffer until the
// connection dies.
func (e *Endpoint) receiver(conn quic.Connection) {
	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		_ = conn.CloseWithError(quic.ApplicationErrorCode(0), "closing")
		return
	}
	e.conns[conn] = struct{}{}
	e.mutex.Unlock()

	defer func() {
		e.mutex.Lock()
		delete(e.conns, conn)
		e.mutex.Unlock()
	}()

	for {
		msg, err := conn.ReceiveMessage(context.Background())
		if err != nil {
			e.logger().WithError(err).WithField("peer", conn.RemoteAddr()).Debug("QUIC connection went away")
			return
		}

		// Identities live in the frame header, not down here.
		e.slot.Store(msg, 0)
	}
}

// Send hands the datagram to every live connection. With no connection up, the
// datagram is dropped; the carrier is best effort and the protocol above repeats
// what matters.
func (e *Endpoint) Send(_ uint32, data []byte) error {
	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		return port.ErrUnavailable
	}
	conns := make([]quic.Connection, 0, len(e.conns))
	for conn := range e.conns {
		conns = append(conns, conn)
	}
	e.mutex.Unlock()

	if len(conns) == 0 {
		e.logger().Debug("No QUIC connection is up, dropping datagram")
		return nil
	}

	for _, conn := range conns {
		if err := conn.SendMessage(data); err != nil {
			e.logger().WithError(err).WithField("peer", conn.RemoteAddr()).Debug("Sending datagram errored")
		}
	}

	return nil
}

// Receive returns the most recent pending datagram, or nil. Senders are reported as
// zero; attribution happens in the frame header.
func (e *Endpoint) Receive(max int) ([]byte, uint32, error) {
	e.mutex.Lock()
	closed := e.closed
	e.mutex.Unlock()

	if closed {
		return nil, 0, port.ErrUnavailable
	}

	data, _ := e.slot.Take(max)
	return data, 0, nil
}

// Close the Endpoint: the beacon, all connections and the listener.
func (e *Endpoint) Close() error {
	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		return port.ErrUnavailable
	}
	e.closed = true
	conns := make([]quic.Connection, 0, len(e.conns))
	for conn := range e.conns {
		conns = append(conns, conn)
	}
	e.mutex.Unlock()

	close(e.closedSyn)
	e.dialCancel()

	if e.finder != nil {
		e.finder.close()
	}

	for _, conn := range conns {
		_ = conn.CloseWithError(quic.ApplicationErrorCode(0), "closing")
	}

	err := e.listener.Close()
	if connErr := e.udpConn.Close(); err == nil {
		// The listener does not own the socket, it must go down separately.
		err = connErr
	}

	e.wg.Wait()

	return err
}

// Address describes the local listener.
func (e *Endpoint) Address() string {
	return fmt.Sprintf("quic://%s", e.listenAddress)
}

func (e *Endpoint) logger() *log.Entry {
	return log.WithField("quicport", e.Address())
}
