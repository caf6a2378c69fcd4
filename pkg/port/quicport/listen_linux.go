// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package quicport

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Within this file, Linux-specific socket options are configured for the
// listener's UDP socket. QUIC moves many small datagrams and profits from
// more kernel buffer than the usual default; an undersized receive buffer
// silently drops bursts.
//
// The requested sizes are capped by net.core.rmem_max and net.core.wmem_max.

// listenControl is the net.ListenConfig's Control function to set the socket options.
func listenControl(_, _ string, rawConn syscall.RawConn) (err error) {
	const (
		// listenUdpRcvbuf sets SO_RCVBUF, the kernel's receive buffer size
		// for the UDP socket in bytes.
		listenUdpRcvbuf int = 1 << 21

		// listenUdpSndbuf sets SO_SNDBUF, the send buffer size accordingly.
		listenUdpSndbuf int = 1 << 21
	)

	opts := map[int]int{
		unix.SO_RCVBUF: listenUdpRcvbuf,
		unix.SO_SNDBUF: listenUdpSndbuf,
	}

	err = rawConn.Control(func(fd uintptr) {
		for opt, value := range opts {
			err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, value)
			if err != nil {
				return
			}
		}
	})

	return
}

// listenPacketConn opens the QUIC listener's UDP socket with socket options set.
func listenPacketConn(address string) (net.PacketConn, error) {
	lc := &net.ListenConfig{Control: listenControl}
	return lc.ListenPacket(context.Background(), "udp", address)
}
