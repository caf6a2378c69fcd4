// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package port

import (
	"bytes"
	"testing"
)

func TestSlotLastWriteWins(t *testing.T) {
	var s Slot

	if data, _ := s.Take(64); data != nil {
		t.Fatalf("Empty Slot returned %x", data)
	}

	s.Store([]byte("old"), 1)
	s.Store([]byte("new"), 2)

	data, from := s.Take(64)
	if !bytes.Equal(data, []byte("new")) {
		t.Fatalf("Expected the newer datagram, got %q", data)
	}
	if from != 2 {
		t.Fatalf("Expected sender 2, got %d", from)
	}

	if data, _ := s.Take(64); data != nil {
		t.Fatalf("Drained Slot returned %x", data)
	}
}

func TestSlotCap(t *testing.T) {
	var s Slot

	s.Store([]byte("0123456789"), 1)

	if data, _ := s.Take(4); !bytes.Equal(data, []byte("0123")) {
		t.Fatalf("Expected the first four bytes, got %q", data)
	}
}

func TestSlotCopies(t *testing.T) {
	var s Slot

	buf := []byte("payload")
	s.Store(buf, 1)
	buf[0] = 'X'

	if data, _ := s.Take(64); !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("Stored datagram was modified afterwards: %q", data)
	}
}

func TestSlotPending(t *testing.T) {
	var s Slot

	if s.Pending() {
		t.Fatal("Empty Slot reports a pending datagram")
	}

	s.Store([]byte{0x23}, 1)
	if !s.Pending() {
		t.Fatal("Filled Slot reports no pending datagram")
	}

	_, _ = s.Take(1)
	if s.Pending() {
		t.Fatal("Drained Slot reports a pending datagram")
	}
}
