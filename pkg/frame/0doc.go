// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package frame implements the UCNP wire format, a fixed 24 byte header followed by a variable payload.
//
// Every multi-byte integer is serialized in little endian byte order. A 16 bit additive checksum
// spans the whole frame; it is computed last with a zeroed checksum field and written back into
// the header. Parsing rejects frames with a foreign magic tag, an unsupported version, a length
// field exceeding the present bytes, or a checksum mismatch. Such frames never reach a Session.
package frame
