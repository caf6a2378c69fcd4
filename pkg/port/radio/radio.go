// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package radio provides a port.Port over broadcasting LoRa modems, reaching an endpoint
// which shares no wire with us, only air.
//
// A LoRa modem's MTU is far below the protocol's frame size. Thus, each datagram is xz
// compressed and split into Fragments, each prefixed with a one byte identifier of
// transmission ID, sequence number and start/end bits, described in the Fragment type.
// The receiving side reassembles Transmissions from Fragments and surfaces finished
// datagrams through the Port's single datagram buffer.
//
// The medium broadcasts. Every endpoint in range hears every Fragment, so received
// datagrams carry no sender attribution; the frame header above sorts this out.
package radio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/port"
)

// Radio is a port.Port around a broadcasting Modem, e.g., a rf95modem LoRa hardware.
type Radio struct {
	modem Modem

	tid byte

	transmissions map[byte]*IncomingTransmission
	slot          port.Slot

	mutex  sync.Mutex
	closed bool

	closedSyn chan struct{}
	closedAck chan struct{}
}

// New creates a Radio around a Modem and starts receiving in the background.
func New(modem Modem) *Radio {
	r := &Radio{
		modem:         modem,
		tid:           randomTransmissionID(),
		transmissions: make(map[byte]*IncomingTransmission),
		closedSyn:     make(chan struct{}),
		closedAck:     make(chan struct{}),
	}

	go r.handler()

	return r
}

// handler reads Fragments from the Modem until closing.
func (r *Radio) handler() {
	defer close(r.closedAck)

	for {
		select {
		case <-r.closedSyn:
			return

		default:
			if f, err := r.modem.Receive(); errors.Is(err, io.EOF) {
				r.logger().Debug("Modem reached EOF, stopping handler")
				return
			} else if err != nil {
				r.logger().WithError(err).Warn("Receiving Fragment errored")
			} else if err := r.handleFragment(f); err != nil {
				r.logger().WithError(err).WithField("fragment", f).Debug("Dropping Fragment")
			}
		}
	}
}

// handleFragment sorts a Fragment into its IncomingTransmission, stashing the datagram of
// a finished Transmission. Only the handler goroutine touches the transmissions map.
func (r *Radio) handleFragment(f Fragment) error {
	transmission, known := r.transmissions[f.TransmissionID()]
	if !known {
		t, err := NewIncomingTransmission(f)
		if err != nil {
			return err
		}

		r.transmissions[t.TransmissionID] = t
		transmission = t
	} else if _, err := transmission.ReadFragment(f); err != nil {
		// A hole in the sequence kills the whole Transmission. The protocol
		// above resends; half a datagram helps nobody.
		delete(r.transmissions, transmission.TransmissionID)
		return err
	}

	if !transmission.IsFinished() {
		return nil
	}
	delete(r.transmissions, transmission.TransmissionID)

	datagram, err := transmission.Datagram()
	if err != nil {
		return err
	}

	r.slot.Store(datagram, 0)
	r.logger().WithField("bytes", len(datagram)).Debug("Received datagram")

	return nil
}

// Send broadcasts one datagram as a Transmission of Fragments. The destination identity
// is ignored; everybody in range listens.
func (r *Radio) Send(_ uint32, data []byte) error {
	if r.isClosed() {
		return port.ErrUnavailable
	}

	t, err := NewOutgoingTransmission(r.nextTransmission(), data, r.modem.Mtu())
	if err != nil {
		return err
	}

	for {
		f, fin, err := t.WriteFragment()
		if err != nil {
			return err
		}
		if err := r.modem.Send(f); err != nil {
			return err
		}

		r.logger().WithField("fragment", f).Debug("Transmitted Fragment")

		if fin {
			return nil
		}
	}
}

// Receive returns the most recent finished datagram, or nil if none is pending. The
// sending identity is always zero; a broadcast medium cannot attribute senders.
func (r *Radio) Receive(max int) ([]byte, uint32, error) {
	if r.isClosed() {
		return nil, 0, port.ErrUnavailable
	}

	data, _ := r.slot.Take(max)
	return data, 0, nil
}

// Close the Radio and its Modem.
func (r *Radio) Close() error {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return port.ErrUnavailable
	}
	r.closed = true
	r.mutex.Unlock()

	close(r.closedSyn)

	// Closing the Modem interrupts a pending Receive in the handler.
	err := r.modem.Close()

	<-r.closedAck

	return err
}

// Address describes this Radio's Modem.
func (r *Radio) Address() string {
	return fmt.Sprintf("radio://%v", r.modem)
}

func (r *Radio) isClosed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.closed
}

// nextTransmission burns and returns the next transmission ID.
func (r *Radio) nextTransmission() (tid byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tid = r.tid
	r.tid = nextTransmissionID(r.tid)
	return
}

func (r *Radio) logger() *log.Entry {
	return log.WithField("radio", r.Address())
}
