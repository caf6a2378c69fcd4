// SPDX-FileCopyrightText: 2023 Alvar Penning
// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session implements the UCNP connection logic on top of a Port: discovery of an
// unknown peer, a symmetric handshake without pre-assigned roles, and the exchange of
// payload frames with acknowledgements and keepalives.
//
// A Session is single threaded by design. All protocol work happens inside the caller's
// Poll invocations; there are no background goroutines and a Session must not be used
// from multiple goroutines concurrently. Both endpoints run the identical code: whoever
// receives a Handshake first confirms it and the connection stands. Reaching the
// connected state is idempotent per peer, so the simultaneous open race needs no
// leader election.
package session
