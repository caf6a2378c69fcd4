// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Version is the implemented protocol version.
	Version uint8 = 1

	// HeaderLen is the length of a serialized header in bytes.
	HeaderLen = 24

	// MaxFrameLen is the maximum length of a serialized Frame, header included.
	MaxFrameLen = 1024

	// MaxPayloadLen is the maximum payload length of a single Frame.
	MaxPayloadLen = MaxFrameLen - HeaderLen
)

// magic is the tag starting each serialized Frame.
var magic = []byte("UCNP")

// Type identifies the kind of a Frame.
type Type uint8

const (
	// Discovery announces this endpoint's identity, broadcasted to an unknown peer.
	Discovery Type = 0x01

	// DiscoveryAck confirms a received Discovery to its sender.
	DiscoveryAck Type = 0x02

	// Handshake requests promoting a discovered peer into a connection.
	Handshake Type = 0x03

	// HandshakeAck completes a handshake; both sides are connected afterwards.
	HandshakeAck Type = 0x04

	// Data carries opaque application bytes.
	Data Type = 0x10

	// DataAck confirms a delivered Data frame.
	DataAck Type = 0x11

	// Keepalive signals liveness on an otherwise idle connection.
	Keepalive Type = 0x20

	// Disconnect announces an orderly teardown.
	Disconnect Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case Discovery:
		return "DISCOVERY"
	case DiscoveryAck:
		return "DISCOVERY_ACK"
	case Handshake:
		return "HANDSHAKE"
	case HandshakeAck:
		return "HANDSHAKE_ACK"
	case Data:
		return "DATA"
	case DataAck:
		return "DATA_ACK"
	case Keepalive:
		return "KEEPALIVE"
	case Disconnect:
		return "DISCONNECT"
	default:
		return fmt.Sprintf("UNKNOWN(%#02x)", uint8(t))
	}
}

var (
	// ErrInvalidMagic is returned for serializations not starting with the "UCNP" tag.
	ErrInvalidMagic = errors.New("invalid magic")

	// ErrVersionMismatch is returned for a version byte this implementation does not speak.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrTruncated is returned if fewer bytes are present than the header demands.
	ErrTruncated = errors.New("truncated frame")

	// ErrFrameTooLarge is returned if a Frame would exceed MaxFrameLen.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrChecksumMismatch is returned if the stored checksum does not match the computed one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Frame is the datagram exchanged between two UCNP endpoints.
//
//	  0       4   5   6     8        12       16       20     22     24
//	+---------+---+---+-----+--------+--------+--------+------+------+=========+
//	| "UCNP"  |Ver|Typ| Len | Source | Dest.  | Seq.No | Chck | Rsvd | Payload |
//	+---------+---+---+-----+--------+--------+--------+------+------+=========+
//
// The length field counts payload bytes only. A destination of zero addresses an
// unknown peer and is inspected by everybody. The reserved field is zero on send
// and ignored on receipt.
type Frame struct {
	Type    Type
	SrcID   uint32
	DstID   uint32
	SeqNo   uint32
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame(%v, %08x->%08x, seq %d, %d byte payload)",
		f.Type, f.SrcID, f.DstID, f.SeqNo, len(f.Payload))
}

// checksum computes the additive checksum, the truncated sum of all bytes.
func checksum(data []byte) (sum uint16) {
	for _, b := range data {
		sum += uint16(b)
	}
	return
}

// Bytes serializes this Frame. The checksum is computed last, over the finished
// serialization with a zeroed checksum field, and written back afterwards.
func (f Frame) Bytes() ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d byte payload, limit is %d",
			ErrFrameTooLarge, len(f.Payload), MaxPayloadLen)
	}

	buf := make([]byte, HeaderLen+len(f.Payload))

	copy(buf[0:4], magic)
	buf[4] = Version
	buf[5] = byte(f.Type)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(f.Payload)))
	binary.LittleEndian.PutUint32(buf[8:12], f.SrcID)
	binary.LittleEndian.PutUint32(buf[12:16], f.DstID)
	binary.LittleEndian.PutUint32(buf[16:20], f.SeqNo)
	copy(buf[HeaderLen:], f.Payload)

	binary.LittleEndian.PutUint16(buf[20:22], checksum(buf))

	return buf, nil
}

// ParseFrame deserializes a Frame, verifying magic, version, length and checksum.
// Bytes after the declared payload length are ignored.
func ParseFrame(data []byte) (f Frame, err error) {
	if len(data) < HeaderLen {
		err = fmt.Errorf("%w: got %d bytes, a header needs %d", ErrTruncated, len(data), HeaderLen)
		return
	}
	if len(data) > MaxFrameLen {
		err = fmt.Errorf("%w: got %d bytes, limit is %d", ErrFrameTooLarge, len(data), MaxFrameLen)
		return
	}

	if !bytes.Equal(data[0:4], magic) {
		err = fmt.Errorf("%w: %x instead of %x", ErrInvalidMagic, data[0:4], magic)
		return
	}
	if data[4] != Version {
		err = fmt.Errorf("%w: got version %d, implemented is %d", ErrVersionMismatch, data[4], Version)
		return
	}

	length := int(binary.LittleEndian.Uint16(data[6:8]))
	if HeaderLen+length > len(data) {
		err = fmt.Errorf("%w: length field demands %d payload bytes, %d are present",
			ErrTruncated, length, len(data)-HeaderLen)
		return
	}

	// Summing around the checksum field equals summing with a zeroed field.
	computed := checksum(data[:20]) + checksum(data[22:HeaderLen+length])
	if stored := binary.LittleEndian.Uint16(data[20:22]); stored != computed {
		err = fmt.Errorf("%w: %#04x stored, %#04x computed", ErrChecksumMismatch, stored, computed)
		return
	}

	f = Frame{
		Type:  Type(data[5]),
		SrcID: binary.LittleEndian.Uint32(data[8:12]),
		DstID: binary.LittleEndian.Uint32(data[12:16]),
		SeqNo: binary.LittleEndian.Uint32(data[16:20]),
	}
	if length > 0 {
		f.Payload = make([]byte, length)
		copy(f.Payload, data[HeaderLen:HeaderLen+length])
	}
	return
}
