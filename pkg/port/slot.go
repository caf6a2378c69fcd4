// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package port

import "sync"

// Slot buffers the single most recent inbound datagram of a Port. Storing a
// datagram discards a pending one; this implements the last write wins
// semantic every Port promises. A Slot is safe for concurrent use.
//
// The zero value is an empty, ready to use Slot.
type Slot struct {
	mutex sync.Mutex
	data  []byte
	from  uint32
}

// Store replaces the pending datagram. The data is copied; the caller may
// reuse its buffer afterwards. A from value of zero marks the sender unknown.
func (s *Slot) Store(data []byte, from uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data = make([]byte, len(data))
	copy(s.data, data)
	s.from = from
}

// Take removes and returns the pending datagram, capped at max bytes. A nil
// slice is returned if nothing is pending.
func (s *Slot) Take(max int) ([]byte, uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.data == nil {
		return nil, 0
	}

	data, from := s.data, s.from
	s.data = nil
	s.from = 0

	if len(data) > max {
		data = data[:max]
	}
	return data, from
}

// Pending reports if a datagram is waiting.
func (s *Slot) Pending() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.data != nil
}
