// SPDX-FileCopyrightText: 2023 Alvar Penning
// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtn7/ucnp-go/pkg/frame"
	"github.com/dtn7/ucnp-go/pkg/port"
	"github.com/dtn7/ucnp-go/pkg/port/selector"
)

const (
	idA uint32 = 0x80000001
	idB uint32 = 0x80000002
)

// testPair wires two Sessions over an in-memory Hub. The long announce and
// keepalive intervals keep timers out of the deterministic tests.
func testPair(t *testing.T) (a, b *Session, hub *port.Hub) {
	t.Helper()

	hub = port.NewHub()

	a = New(Config{
		Port:              port.NewPipe(hub, idA),
		Method:            port.MethodPolling,
		Identity:          idA,
		AnnounceInterval:  time.Minute,
		KeepaliveInterval: time.Minute,
	})
	b = New(Config{
		Port:              port.NewPipe(hub, idB),
		Method:            port.MethodPolling,
		Identity:          idB,
		AnnounceInterval:  time.Minute,
		KeepaliveInterval: time.Minute,
	})

	return
}

// converge drives both Sessions with alternating zero timeout Polls until
// both are connected, b first. Mirrors the plain two endpoint bring-up:
// a's Discovery reaches b, b confirms, a drives the Handshake.
func converge(t *testing.T, a, b *Session) {
	t.Helper()

	if err := a.Listen(); err != nil {
		t.Fatal(err)
	}
	if err := b.Listen(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for cycle := 0; cycle < 8; cycle++ {
		if a.State() == StateConnected && b.State() == StateConnected {
			break
		}

		for _, s := range []*Session{b, a} {
			if _, err := s.Poll(ctx, 0); err != nil {
				t.Fatal(err)
			}
		}
	}

	if a.State() != StateConnected || b.State() != StateConnected {
		t.Fatalf("No convergence: a is %v, b is %v", a.State(), b.State())
	}
	if a.PeerID() != idB {
		t.Fatalf("a's peer is %08x instead of %08x", a.PeerID(), idB)
	}
	if b.PeerID() != idA {
		t.Fatalf("b's peer is %08x instead of %08x", b.PeerID(), idA)
	}
}

func TestSessionListenBroadcast(t *testing.T) {
	hub := port.NewHub()
	observer := port.NewPipe(hub, 0)

	s := New(Config{Port: port.NewPipe(hub, idA), Identity: idA})
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateDetecting {
		t.Fatalf("State is %v instead of detecting", s.State())
	}

	data, _, err := observer.Receive(frame.MaxFrameLen)
	if err != nil {
		t.Fatal(err)
	}

	f, err := frame.ParseFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != frame.Discovery || f.SrcID != idA || f.DstID != 0 {
		t.Fatalf("Unexpected announcement: %v", f)
	}
}

func TestSessionConvergence(t *testing.T) {
	a, b, _ := testPair(t)
	converge(t, a, b)
}

func TestSessionConnectedEvent(t *testing.T) {
	a, b, _ := testPair(t)

	if err := a.Listen(); err != nil {
		t.Fatal(err)
	}
	if err := b.Listen(); err != nil {
		t.Fatal(err)
	}

	// b's first poll answers a's Discovery, a's drives the Handshake. The
	// third and fourth poll each complete one side's connection and must
	// surface exactly one state change per side.
	ctx := context.Background()
	events := make(map[*Session]int)

	for cycle := 0; cycle < 8; cycle++ {
		for _, s := range []*Session{b, a} {
			res, err := s.Poll(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if res.Event == EventStateChanged {
				if res.State != StateConnected {
					t.Fatalf("Unexpected state change to %v", res.State)
				}
				events[s]++
			}
		}
	}

	if events[a] != 1 || events[b] != 1 {
		t.Fatalf("Connected events: a got %d, b got %d, expected one each", events[a], events[b])
	}
}

func TestSessionPing(t *testing.T) {
	a, b, _ := testPair(t)
	converge(t, a, b)

	if n, err := a.Send([]byte("ping")); err != nil {
		t.Fatal(err)
	} else if n != 4 {
		t.Fatalf("Send reported %d bytes instead of 4", n)
	}

	res, err := b.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventData || !bytes.Equal(res.Data, []byte("ping")) {
		t.Fatalf("Expected the ping payload, got %v with %q", res.Event, res.Data)
	}

	// a's next poll only sees b's DataAck, which refreshes liveness.
	res, err = a.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventNone {
		t.Fatalf("DataAck surfaced as %v", res.Event)
	}
	if a.LastHeard().IsZero() {
		t.Fatal("LastHeard was not refreshed")
	}
}

func TestSessionRecvLimit(t *testing.T) {
	hub := port.NewHub()

	a := New(Config{Port: port.NewPipe(hub, idA), Identity: idA,
		AnnounceInterval: time.Minute, KeepaliveInterval: time.Minute})
	b := New(Config{Port: port.NewPipe(hub, idB), Identity: idB, RecvLimit: 4,
		AnnounceInterval: time.Minute, KeepaliveInterval: time.Minute})

	converge(t, a, b)

	if _, err := a.Send([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	res, err := b.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventData || !bytes.Equal(res.Data, []byte("0123")) {
		t.Fatalf("Expected the truncated payload, got %v with %q", res.Event, res.Data)
	}
}

func TestSessionSendNotConnected(t *testing.T) {
	hub := port.NewHub()
	observer := port.NewPipe(hub, 0)

	s := New(Config{Port: port.NewPipe(hub, idA), Identity: idA})

	if _, err := s.Send([]byte("too early")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}

	// The failed Send must not have touched the carrier.
	if data, _, _ := observer.Receive(frame.MaxFrameLen); data != nil {
		t.Fatalf("A frame reached the carrier: %x", data)
	}
}

func TestSessionConnectExplicit(t *testing.T) {
	a, b, _ := testPair(t)

	if err := a.Listen(); err != nil {
		t.Fatal(err)
	}
	// Drain a's announcement from b's slot; b connects by identity instead.
	if _, err := b.Poll(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	if err := b.Connect(idA); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateHandshaking {
		t.Fatalf("b is %v instead of handshaking", b.State())
	}

	res, err := a.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventStateChanged || a.State() != StateConnected {
		t.Fatalf("a got %v in state %v", res.Event, a.State())
	}

	res, err = b.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventStateChanged || b.State() != StateConnected {
		t.Fatalf("b got %v in state %v", res.Event, b.State())
	}
}

func TestSessionDuplicateHandshake(t *testing.T) {
	a, b, hub := testPair(t)
	converge(t, a, b)

	// Replay b's Handshake towards a, as if a's HandshakeAck got lost.
	replayer := port.NewPipe(hub, 0)
	replay, err := frame.Frame{
		Type:    frame.Handshake,
		SrcID:   idB,
		DstID:   idA,
		SeqNo:   999,
		Payload: handshakePayload(idB, idA),
	}.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := replayer.Send(0, replay); err != nil {
		t.Fatal(err)
	}

	res, err := a.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventNone {
		t.Fatalf("Duplicate Handshake surfaced as %v", res.Event)
	}
	if a.State() != StateConnected || a.PeerID() != idB {
		t.Fatalf("a changed to %v with peer %08x", a.State(), a.PeerID())
	}

	// a must have answered with another HandshakeAck.
	data, _, err := replayer.Receive(frame.MaxFrameLen)
	if err != nil {
		t.Fatal(err)
	}
	if f, err := frame.ParseFrame(data); err != nil {
		t.Fatal(err)
	} else if f.Type != frame.HandshakeAck || f.SrcID != idA {
		t.Fatalf("Expected a repeated HandshakeAck, got %v", f)
	}
}

func TestSessionShutdownDisconnect(t *testing.T) {
	a, b, _ := testPair(t)
	converge(t, a, b)

	if err := a.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if a.State() != StateDisconnected || a.PeerID() != 0 {
		t.Fatalf("a is %v with peer %08x after shutdown", a.State(), a.PeerID())
	}

	res, err := b.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventStateChanged || res.State != StateDisconnected {
		t.Fatalf("b got %v with state %v", res.Event, res.State)
	}
	if b.PeerID() != 0 {
		t.Fatalf("b still records peer %08x", b.PeerID())
	}
}

func TestSessionIgnoresEcho(t *testing.T) {
	hub := port.NewHub()
	observer := port.NewPipe(hub, 0)

	s := New(Config{Port: port.NewPipe(hub, idA), Identity: idA,
		AnnounceInterval: time.Minute})
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}

	// A datagram carrying our own source identity must not become our peer.
	echo, err := frame.Frame{Type: frame.Discovery, SrcID: idA, Payload: discoverPayload(idA)}.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := observer.Send(0, echo); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Poll(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if s.PeerID() != 0 {
		t.Fatalf("Session peered with itself: %08x", s.PeerID())
	}
}

func TestSessionIgnoresForeignDst(t *testing.T) {
	a, b, hub := testPair(t)
	converge(t, a, b)

	outsider := port.NewPipe(hub, 0)
	foreign, err := frame.Frame{
		Type:    frame.Data,
		SrcID:   idB,
		DstID:   0x80000023,
		SeqNo:   1000,
		Payload: []byte("not for a"),
	}.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := outsider.Send(0, foreign); err != nil {
		t.Fatal(err)
	}

	res, err := a.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventNone {
		t.Fatalf("Foreign frame surfaced as %v with %q", res.Event, res.Data)
	}
}

func TestSessionMalformedDatagram(t *testing.T) {
	a, b, hub := testPair(t)
	converge(t, a, b)

	outsider := port.NewPipe(hub, 0)

	corrupt, err := frame.Frame{Type: frame.Data, SrcID: idB, DstID: idA, Payload: []byte("garbled")}.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	corrupt[frame.HeaderLen] ^= 0xFF

	for _, datagram := range [][]byte{corrupt, []byte("no frame at all")} {
		if err := outsider.Send(0, datagram); err != nil {
			t.Fatal(err)
		}

		res, err := a.Poll(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if res.Event != EventNone {
			t.Fatalf("Malformed datagram surfaced as %v", res.Event)
		}
		if a.State() != StateConnected {
			t.Fatalf("Malformed datagram moved a to %v", a.State())
		}
	}
}

func TestSessionPollTimeout(t *testing.T) {
	_, b, _ := testPair(t)

	start := time.Now()
	res, err := b.Poll(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventNone {
		t.Fatalf("Idle poll returned %v", res.Event)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("Poll returned after %v, before the timeout", elapsed)
	}
}

func TestSessionPollCancel(t *testing.T) {
	_, b, _ := testPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if _, err := b.Poll(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Cancellation took %v", elapsed)
	}
}

func TestSessionReannounce(t *testing.T) {
	hub := port.NewHub()
	observer := port.NewPipe(hub, 0)

	s := New(Config{
		Port:             port.NewPipe(hub, idA),
		Identity:         idA,
		PollInterval:     5 * time.Millisecond,
		AnnounceInterval: 20 * time.Millisecond,
	})

	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	// Drop the initial announcement; a fresh one must follow while detecting.
	if _, _, err := observer.Receive(frame.MaxFrameLen); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Poll(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	data, _, err := observer.Receive(frame.MaxFrameLen)
	if err != nil {
		t.Fatal(err)
	}
	if data == nil {
		t.Fatal("No repeated announcement was broadcasted")
	}
	if f, err := frame.ParseFrame(data); err != nil {
		t.Fatal(err)
	} else if f.Type != frame.Discovery {
		t.Fatalf("Expected a repeated Discovery, got %v", f)
	}
}

func TestSessionKeepalive(t *testing.T) {
	hub := port.NewHub()

	a := New(Config{Port: port.NewPipe(hub, idA), Identity: idA,
		PollInterval: 5 * time.Millisecond, AnnounceInterval: time.Minute,
		KeepaliveInterval: 20 * time.Millisecond})
	b := New(Config{Port: port.NewPipe(hub, idB), Identity: idB,
		AnnounceInterval: time.Minute, KeepaliveInterval: time.Minute})

	converge(t, a, b)

	// a idles long enough for a Keepalive; b picks it up as pure liveness.
	if _, err := a.Poll(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	before := b.LastHeard()
	res, err := b.Poll(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != EventNone {
		t.Fatalf("Keepalive surfaced as %v", res.Event)
	}
	if !b.LastHeard().After(before) {
		t.Fatal("Keepalive did not refresh LastHeard")
	}
}

func TestSessionDetectsCarrier(t *testing.T) {
	s := New(Config{
		Link: selector.Config{
			TypeCPort:  filepath.Join(t.TempDir(), "no-such-port"),
			MailboxDir: t.TempDir(),
		},
	})

	if s.Method() != port.MethodPolling {
		t.Fatalf("expected the polling fallback, got %v", s.Method())
	}
	if s.ID()&0x80000000 == 0 {
		t.Fatalf("generated identity %08x misses its high bit", s.ID())
	}

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
