// SPDX-FileCopyrightText: 2023 Alvar Penning
// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/frame"
	"github.com/dtn7/ucnp-go/pkg/port"
	"github.com/dtn7/ucnp-go/pkg/port/selector"
)

// ErrNotConnected is returned for Sends while no connection stands. No
// transport I/O happens in this case; nothing is queued.
var ErrNotConnected = errors.New("not connected")

const (
	// defaultPollInterval is the pause between two receive attempts in Poll.
	defaultPollInterval = 100 * time.Millisecond

	// defaultAnnounceInterval is the pause between repeated Discovery
	// broadcasts while detecting.
	defaultAnnounceInterval = 2 * time.Second

	// defaultKeepaliveInterval is the maximum send silence on a standing
	// connection before a Keepalive goes out.
	defaultKeepaliveInterval = 5 * time.Second
)

// Config parametrizes a new Session. The zero value works: carrier detection
// picks a Port and an identity is generated.
type Config struct {
	// Port is the carrier this Session drives. A nil Port runs carrier
	// detection over the Link settings instead.
	Port port.Port

	// Method names how Port was chosen, for reporting only. Ignored when
	// detection runs.
	Method port.Method

	// Link parametrizes carrier detection for a nil Port. Its Identity field
	// is filled in with this Session's identity.
	Link selector.Config

	// Identity overrides the generated identity. Its high bit must be set.
	Identity uint32

	// RecvLimit caps delivered payloads in bytes. Longer payloads are truncated
	// at delivery, not buffered. Defaults to the maximum payload length.
	RecvLimit int

	// PollInterval, AnnounceInterval and KeepaliveInterval override the
	// protocol cadences, mostly useful in tests.
	PollInterval      time.Duration
	AnnounceInterval  time.Duration
	KeepaliveInterval time.Duration
}

// Session is one UCNP endpoint. It owns the protocol state and drives its
// Port; see the package documentation for the threading model.
type Session struct {
	port   port.Port
	method port.Method

	id     uint32
	peerID uint32

	state State

	txSeq uint32
	rxSeq uint32

	recvLimit int

	pollInterval      time.Duration
	announceInterval  time.Duration
	keepaliveInterval time.Duration

	lastAnnounce time.Time
	lastSent     time.Time
	lastHeard    time.Time
}

// New creates a Session in the disconnected state. An identity is generated
// unless the Config supplies one, and with a nil Port the carrier detection
// runs once here. New does not fail; with every carrier down the Session
// starts degraded on a deaf in-memory pipe, see selector.Detect.
func New(cfg Config) *Session {
	s := &Session{
		port:   cfg.Port,
		method: cfg.Method,

		id: cfg.Identity,

		state: StateDisconnected,

		recvLimit: cfg.RecvLimit,

		pollInterval:      cfg.PollInterval,
		announceInterval:  cfg.AnnounceInterval,
		keepaliveInterval: cfg.KeepaliveInterval,
	}

	if s.id == 0 {
		s.id = GenerateIdentity()
	}
	if s.recvLimit <= 0 {
		s.recvLimit = frame.MaxPayloadLen
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.announceInterval <= 0 {
		s.announceInterval = defaultAnnounceInterval
	}
	if s.keepaliveInterval <= 0 {
		s.keepaliveInterval = defaultKeepaliveInterval
	}

	if s.port == nil {
		link := cfg.Link
		link.Identity = s.id
		s.method, s.port = selector.Detect(link)
	}

	s.logger().WithField("method", s.method).Info("Session created")
	return s
}

// ID returns this Session's identity.
func (s *Session) ID() uint32 {
	return s.id
}

// PeerID returns the peer's identity or zero while no peer is known.
func (s *Session) PeerID() uint32 {
	return s.peerID
}

// State returns the current connection state.
func (s *Session) State() State {
	return s.state
}

// Method names how this Session's Port was chosen.
func (s *Session) Method() port.Method {
	return s.method
}

// LastHeard returns the arrival time of the last accepted inbound frame. The
// zero time means nothing was heard yet. Silence alone tears nothing down;
// this is exposed for diagnostics.
func (s *Session) LastHeard() time.Time {
	return s.lastHeard
}

// Listen starts the discovery phase: the Session broadcasts its identity and
// answers discoveries from others. Listen may be called in any state and
// re-enters detecting.
func (s *Session) Listen() error {
	s.state = StateDetecting
	s.lastAnnounce = time.Now()

	s.logger().Info("Listening for peers")
	return s.sendFrame(frame.Discovery, 0, discoverPayload(s.id))
}

// Connect skips discovery and drives a Handshake towards a known peer
// identity. The connection stands once the peer's HandshakeAck arrives in a
// following Poll.
func (s *Session) Connect(peer uint32) error {
	s.peerID = peer
	s.state = StateHandshaking

	s.logger().Info("Connecting to peer")
	return s.sendFrame(frame.Handshake, peer, handshakePayload(s.id, peer))
}

// Send transmits a payload to the connected peer and returns the number of
// payload bytes handed to the carrier. Without a standing connection, Send
// fails fast with ErrNotConnected.
func (s *Session) Send(payload []byte) (int, error) {
	if s.state != StateConnected {
		return 0, ErrNotConnected
	}

	if err := s.sendFrame(frame.Data, s.peerID, payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// Shutdown announces a teardown to a connected peer and closes the Port.
func (s *Session) Shutdown() error {
	var errs *multierror.Error

	if s.state == StateConnected {
		if err := s.sendFrame(frame.Disconnect, s.peerID, nil); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	s.logger().Info("Shutting down")

	s.state = StateDisconnected
	s.peerID = 0

	if err := s.port.Close(); err != nil && !errors.Is(err, port.ErrUnavailable) {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}

// nextSeq returns the transmit sequence number for the next frame. The counter
// starts at zero and wraps with its 32 bits.
func (s *Session) nextSeq() (seq uint32) {
	seq = s.txSeq
	s.txSeq++
	return
}

// sendFrame serializes one frame and hands it to the Port.
func (s *Session) sendFrame(t frame.Type, dst uint32, payload []byte) error {
	f := frame.Frame{
		Type:    t,
		SrcID:   s.id,
		DstID:   dst,
		SeqNo:   s.nextSeq(),
		Payload: payload,
	}

	data, err := f.Bytes()
	if err != nil {
		return err
	}

	if err := s.port.Send(dst, data); err != nil {
		s.logger().WithError(err).WithField("frame", f).Warn("Sending frame failed")
		return err
	}

	s.lastSent = time.Now()
	s.logger().WithField("frame", f).Debug("Sent frame")
	return nil
}

// logger returns a prepared logrus.Entry.
func (s *Session) logger() (e *log.Entry) {
	e = log.WithFields(log.Fields{
		"session": fmt.Sprintf("%08x", s.id),
		"state":   s.state,
	})

	if s.peerID != 0 {
		e = e.WithField("peer", fmt.Sprintf("%08x", s.peerID))
	}

	return
}
