// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package port

import "errors"

// ErrUnavailable is returned for operations on a Port whose carrier is gone,
// e.g. after Close was called or the underlying device vanished.
var ErrUnavailable = errors.New("transport unavailable")

// Port is a carrier moving opaque datagrams between two endpoints.
//
// Delivery is best effort: a carrier may silently drop or duplicate datagrams
// and guarantees no order. Protocol logic above a Port must tolerate all of
// this; a Port only promises that a delivered datagram arrives unmodified.
type Port interface {
	// Send hands one datagram to the carrier. The destination identity is a
	// hint for carriers with addressing; broadcast carriers ignore it and
	// leave filtering to the receiver. Send may block while transmitting.
	Send(dst uint32, data []byte) error

	// Receive returns the most recently arrived pending datagram, capped at
	// max bytes, or a nil slice if nothing is pending. Receive must return
	// within a short bounded time. The second return value names the sending
	// identity if the carrier can attribute it, zero otherwise.
	Receive(max int) ([]byte, uint32, error)

	// Close releases the carrier's resources. Pending datagrams are lost.
	Close() error

	// Address describes the carrier's local endpoint, for logging.
	Address() string
}
