// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package quicport

import (
	"net"
)

// This file implements the UDP socket setup for operating systems next to
// Linux. The other file additionally sizes the kernel buffers.

// listenPacketConn opens the QUIC listener's UDP socket.
func listenPacketConn(address string) (net.PacketConn, error) {
	return net.ListenPacket("udp", address)
}
