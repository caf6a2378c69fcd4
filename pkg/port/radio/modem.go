// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package radio

// Modem is a generic broadcasting modem handling Fragments.
//
// The Mtu method indicates the maximum transmission unit (MTU) of this Modem. Every
// Fragment's byte representation MUST NOT exceed this value.
//
// Sending and receiving Fragments are achieved by the Send and Receive methods.
//
// A Close call MUST interrupt a pending Receive, which then returns io.EOF.
type Modem interface {
	// Mtu returns the maximum transmission unit for this Modem.
	Mtu() int

	// Send broadcasts a Fragment over this Modem.
	Send(Fragment) error

	// Receive waits for the next Fragment to be read from this Modem.
	Receive() (Fragment, error)

	// Close this Modem. A pending Receive returns io.EOF afterwards.
	Close() error
}
