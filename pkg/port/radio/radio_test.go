// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package radio

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/dtn7/ucnp-go/pkg/port"
)

// receiveWithin polls a Radio until a datagram arrives or the timeout hits.
func receiveWithin(t *testing.T, r *Radio, timeout time.Duration) []byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, _, err := r.Receive(1024)
		if err != nil {
			t.Fatalf("Receive errored: %v", err)
		}
		if data != nil {
			return data
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("no datagram arrived in time")
	return nil
}

func TestRadioRoundtrip(t *testing.T) {
	hub := newDummyHub()
	rAlfa := New(newDummyModem(64, hub))
	rBravo := New(newDummyModem(64, hub))

	msgAlfa := bytes.Repeat([]byte("short wave, long patience. "), 16)
	if err := rAlfa.Send(0, msgAlfa); err != nil {
		t.Fatal(err)
	}
	if data := receiveWithin(t, rBravo, time.Second); !bytes.Equal(data, msgAlfa) {
		t.Fatalf("datagram mismatches: %x != %x", data, msgAlfa)
	}

	msgBravo := []byte("ack over air")
	if err := rBravo.Send(0, msgBravo); err != nil {
		t.Fatal(err)
	}
	if data := receiveWithin(t, rAlfa, time.Second); !bytes.Equal(data, msgBravo) {
		t.Fatalf("datagram mismatches: %x != %x", data, msgBravo)
	}

	for _, r := range []*Radio{rAlfa, rBravo} {
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
		if err := r.Close(); !errors.Is(err, port.ErrUnavailable) {
			t.Fatalf("second Close returned %v", err)
		}
		if _, _, err := r.Receive(1024); !errors.Is(err, port.ErrUnavailable) {
			t.Fatalf("Receive after Close returned %v", err)
		}
		if err := r.Send(0, []byte{0x42}); !errors.Is(err, port.ErrUnavailable) {
			t.Fatalf("Send after Close returned %v", err)
		}
	}
}

func TestRadioLatestWins(t *testing.T) {
	// No handler goroutine; Fragments are fed by hand for a deterministic order.
	r := &Radio{transmissions: make(map[byte]*IncomingTransmission)}

	feed := func(tid byte, datagram []byte) {
		t.Helper()

		out, err := NewOutgoingTransmission(tid, datagram, 64)
		if err != nil {
			t.Fatal(err)
		}
		for {
			f, fin, err := out.WriteFragment()
			if err != nil {
				t.Fatal(err)
			}
			if err := r.handleFragment(f); err != nil {
				t.Fatal(err)
			}
			if fin {
				return
			}
		}
	}

	feed(1, []byte("stale"))
	feed(2, []byte("fresh"))

	if data, _, err := r.Receive(1024); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(data, []byte("fresh")) {
		t.Fatalf("expected the latest datagram, got %q", data)
	}

	if data, _, _ := r.Receive(1024); data != nil {
		t.Fatalf("buffer must be empty after taking, got %q", data)
	}
}

// receiveWithinOrNil polls like receiveWithin, but absence is no failure.
func receiveWithinOrNil(r *Radio, timeout time.Duration) []byte {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if data, _, err := r.Receive(1024); err != nil || data != nil {
			return data
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func TestRadioLossyHub(t *testing.T) {
	hub := newDummyHubDrop(5)
	rAlfa := New(newDummyModem(32, hub))
	rBravo := New(newDummyModem(32, hub))
	defer func() {
		_ = rAlfa.Close()
		_ = rBravo.Close()
	}()

	// A lost Fragment kills its whole Transmission. Resending, as the protocol
	// above would, must get the datagram through eventually.
	msg := []byte("persistence beats packet loss")
	for i := 0; i < 10; i++ {
		if err := rAlfa.Send(0, msg); err != nil {
			t.Fatal(err)
		}
		if data := receiveWithinOrNil(rBravo, 200*time.Millisecond); bytes.Equal(data, msg) {
			return
		}
	}

	t.Fatal("datagram never made it through the lossy hub")
}

func TestRadioAddress(t *testing.T) {
	r := New(newDummyModem(64, newDummyHub()))
	defer func() { _ = r.Close() }()

	if expected := "radio://dummy,mtu:64"; r.Address() != expected {
		t.Fatalf("address mismatches: %s != %s", r.Address(), expected)
	}
}
