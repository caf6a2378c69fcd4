// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package port defines the carrier boundary of UCNP: a Port moves opaque datagrams between
// two endpoints with best effort delivery and no ordering guarantee.
//
// A Port keeps at most one pending inbound datagram. When several arrive before the next
// Receive, the most recent one wins and older ones are discarded. The Slot type implements
// this buffering for concrete carriers; the Pipe type provides an in-memory carrier for
// tests and single-process demonstrations.
package port
