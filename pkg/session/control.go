// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"encoding/binary"
	"fmt"
)

// Control frames carry a printable, NUL terminated summary as payload. Peer
// identities are authoritative from the frame header alone; these strings
// exist to make on-wire captures readable.

func discoverPayload(id uint32) []byte {
	return []byte(fmt.Sprintf("DISCOVER:%08x\x00", id))
}

func discoverAckPayload(id uint32) []byte {
	return []byte(fmt.Sprintf("ACK:%08x\x00", id))
}

func handshakePayload(src, dst uint32) []byte {
	return []byte(fmt.Sprintf("HANDSHAKE:%08x->%08x\x00", src, dst))
}

func handshakeAckPayload(id uint32) []byte {
	return []byte(fmt.Sprintf("HSHAKE_ACK:%08x\x00", id))
}

// dataAckPayload echoes the acknowledged sequence number.
func dataAckPayload(seq uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, seq)
	return buf
}
