// SPDX-FileCopyrightText: 2023 Alvar Penning
// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/frame"
)

// pump receives and processes at most one pending datagram. A delivered Data
// payload is returned in delivered; changed reports a transition into the
// connected or disconnected state. Only carrier errors surface as err.
func (s *Session) pump() (delivered []byte, changed bool, err error) {
	data, from, err := s.port.Receive(frame.MaxFrameLen)
	if err != nil || data == nil {
		return
	}

	f, parseErr := frame.ParseFrame(data)
	if parseErr != nil {
		// Malformed datagrams die here; the state machine never sees them.
		s.logger().WithError(parseErr).Debug("Dropping malformed datagram")
		return
	}

	if f.SrcID == s.id {
		// A broadcast carrier may echo our own frames.
		return
	}
	if f.DstID != 0 && f.DstID != s.id {
		s.logger().WithField("frame", f).Debug("Dropping frame addressed to another endpoint")
		return
	}
	if from != 0 && from != f.SrcID {
		s.logger().WithFields(log.Fields{
			"frame":   f,
			"carrier": fmt.Sprintf("%08x", from),
		}).Debug("Carrier attribution differs from the frame's source")
	}

	s.lastHeard = time.Now()
	s.rxSeq = f.SeqNo

	s.logger().WithField("frame", f).Debug("Received frame")

	delivered, changed = s.handleFrame(f)
	return
}

// handleFrame applies one frame to the state machine.
//
// Failures while answering are logged and swallowed: the carrier is best
// effort anyway and the peer repeats its frame if an answer got lost.
func (s *Session) handleFrame(f frame.Frame) (delivered []byte, changed bool) {
	switch f.Type {
	case frame.Discovery:
		if s.state != StateDetecting {
			return
		}

		s.peerID = f.SrcID
		s.logger().Info("Discovered peer")
		s.answer(frame.DiscoveryAck, discoverAckPayload(s.id))

	case frame.DiscoveryAck:
		if s.state != StateDetecting {
			return
		}

		s.peerID = f.SrcID
		s.state = StateHandshaking
		s.logger().Info("Peer confirmed discovery, driving handshake")
		s.answer(frame.Handshake, handshakePayload(s.id, s.peerID))

	case frame.Handshake:
		switch s.state {
		case StateDetecting, StateHandshaking:
			s.peerID = f.SrcID
			s.answer(frame.HandshakeAck, handshakeAckPayload(s.id))

			s.state = StateConnected
			changed = true
			s.logger().Info("Connected")

		case StateConnected:
			// A repeated Handshake from our peer means the HandshakeAck got
			// lost. Answer again, no second connected event.
			if f.SrcID == s.peerID {
				s.answer(frame.HandshakeAck, handshakeAckPayload(s.id))
			}
		}

	case frame.HandshakeAck:
		if s.state != StateHandshaking || f.SrcID != s.peerID {
			return
		}

		s.state = StateConnected
		changed = true
		s.logger().Info("Connected")

	case frame.Data:
		if s.state != StateConnected || f.SrcID != s.peerID || len(f.Payload) == 0 {
			return
		}

		delivered = f.Payload
		if len(delivered) > s.recvLimit {
			delivered = delivered[:s.recvLimit]
		}
		s.answer(frame.DataAck, dataAckPayload(f.SeqNo))

	case frame.DataAck, frame.Keepalive:
		// Liveness only; single flight sending does not block on acks.

	case frame.Disconnect:
		if s.state != StateConnected || f.SrcID != s.peerID {
			return
		}

		s.logger().Info("Peer disconnected")
		s.peerID = 0
		s.state = StateDisconnected
		changed = true

	default:
		s.logger().WithField("frame", f).Debug("Dropping frame of unknown type")
	}

	return
}

// answer sends a reaction frame to the current peer.
func (s *Session) answer(t frame.Type, payload []byte) {
	if err := s.sendFrame(t, s.peerID, payload); err != nil {
		s.logger().WithError(err).Warn("Answering failed")
	}
}
