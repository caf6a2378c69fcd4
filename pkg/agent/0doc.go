// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent connects applications to a running UCNP endpoint.
//
// The main interface is the ApplicationAgent, which only requires two channels for
// incoming and outgoing Messages plus a list of client names it answers to. Due to this
// flexibility, an ApplicationAgent can be implemented in various forms, e.g., as an
// external interface for third-party programs or as an internal module. This package
// ships a WebSocket agent with its client side connector, a REST agent, and the
// MuxAgent gluing any number of them to the single Session owned by the daemon.
package agent
