// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "testing"

func TestGenerateIdentity(t *testing.T) {
	seen := make(map[uint32]struct{})

	for i := 0; i < 64; i++ {
		id := GenerateIdentity()

		if id&0x80000000 == 0 {
			t.Fatalf("Identity %08x misses the forced high bit", id)
		}
		if id == 0 {
			t.Fatal("Identity is the reserved broadcast value")
		}

		seen[id] = struct{}{}
	}

	// Collisions are possible but 64 equal draws are not.
	if len(seen) < 2 {
		t.Fatalf("All %d identities collided on %d distinct values", 64, len(seen))
	}
}
