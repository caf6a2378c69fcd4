// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package typec inspects USB Type-C connectors through the kernel's sysfs connector class.
//
// The only signal UCNP relies on is "a partner is physically present". Everything else,
// like roles, orientation or Power Delivery capabilities, is read best effort and serves
// method selection and diagnostics. All reads are single files below /sys/class/typec
// and never block.
package typec

// DefaultPortPath is the first Type-C connector on most machines.
const DefaultPortPath = "/sys/class/typec/port0"
