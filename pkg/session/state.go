// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

// State describes the connection state of a Session.
type State int

const (
	// StateDisconnected is the initial state, before Listen or Connect, and is
	// re-entered when the peer announces a Disconnect.
	StateDisconnected State = iota

	// StateDetecting is the discovery phase: the Session broadcasts its
	// identity and waits for another endpoint to show up.
	StateDetecting

	// StateHandshaking means a peer is known and a Handshake is in flight.
	StateHandshaking

	// StateConnected allows payload exchange in both directions.
	StateConnected

	// StateError is terminal and reserved for unrecoverable local failures.
	// No protocol event enters it.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDetecting:
		return "detecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "INVALID"
	}
}
