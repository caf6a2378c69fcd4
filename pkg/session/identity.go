// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"time"
)

// GenerateIdentity creates an identity for one process lifetime: 32 random
// bits with the high bit forced set. The forced bit keeps every identity
// distinct from the reserved broadcast value zero. Should the random source
// fail, time and PID are mixed instead.
func GenerateIdentity() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		now := time.Now()
		mixed := uint32(now.Unix()) ^ uint32(now.Nanosecond()) ^ uint32(os.Getpid())
		return mixed | 0x80000000
	}

	return binary.LittleEndian.Uint32(buf[:]) | 0x80000000
}
