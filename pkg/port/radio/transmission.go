// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package radio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Transmission is one datagram on its way through the modem, split into Fragments.
//
// Most datagrams exceed a LoRa modem's MTU and arrive as multiple Fragments. The four bit
// transmission ID binds Fragments to their Transmission; with the tight ID space, IDs are
// taken from a randomly started counter to keep collisions between endpoints unlikely.
//
// In the following, a distinction is made between incoming and outgoing Transmissions:
// IncomingTransmission and OutgoingTransmission.
type Transmission struct {
	TransmissionID byte
	Payload        []byte

	finished bool
}

// IsFinished indicates a finished Transmission.
func (t Transmission) IsFinished() bool {
	return t.finished
}

func (t Transmission) String() string {
	return fmt.Sprintf("Transmission(TID: %d, Finished: %t)", t.TransmissionID, t.IsFinished())
}

// IncomingTransmission are the incoming Transmissions from external sources.
type IncomingTransmission struct {
	Transmission
	prevSequenceNo byte
}

// NewIncomingTransmission creates a new IncomingTransmission from a Fragment with the
// start bit set.
func NewIncomingTransmission(f Fragment) (t *IncomingTransmission, err error) {
	if !f.StartBit() {
		err = fmt.Errorf("Fragment has no start bit")
		return
	}

	t = &IncomingTransmission{
		Transmission: Transmission{
			TransmissionID: f.TransmissionID(),
			Payload:        f.Payload,
			finished:       f.EndBit(),
		},
		prevSequenceNo: f.SequenceNumber(),
	}
	return
}

// ReadFragment processes the next Fragment for this IncomingTransmission.
func (t *IncomingTransmission) ReadFragment(f Fragment) (finished bool, err error) {
	if t.IsFinished() {
		err = fmt.Errorf("Transmission was already marked as finished")
		return
	}

	if f.TransmissionID() != t.TransmissionID {
		err = fmt.Errorf("transmission ID mismatches: Fragment got %x, expected %x",
			f.TransmissionID(), t.TransmissionID)
		return
	}

	if expected := nextSequenceNumber(t.prevSequenceNo); f.SequenceNumber() != expected {
		err = fmt.Errorf("expected sequence number of %x, got %x", expected, f.SequenceNumber())
		return
	}

	if f.StartBit() {
		err = fmt.Errorf("Fragment has start bit, but previous data was already read")
		return
	}

	t.Payload = append(t.Payload, f.Payload...)
	t.finished = f.EndBit()
	t.prevSequenceNo = f.SequenceNumber()

	finished = t.IsFinished()
	return
}

// Datagram returns the reassembled, decompressed datagram of a finished Transmission.
func (t *IncomingTransmission) Datagram() (data []byte, err error) {
	if !t.IsFinished() {
		err = fmt.Errorf("Transmission is not finished yet")
		return
	}

	xzR, xzErr := xz.NewReader(bytes.NewReader(t.Payload))
	if xzErr != nil {
		err = xzErr
		return
	}

	return io.ReadAll(xzR)
}

// OutgoingTransmission are the outgoing Transmissions to external sources.
type OutgoingTransmission struct {
	Transmission
	mtu            int
	start          bool
	nextSequenceNo byte
}

// NewOutgoingTransmission creates a new OutgoingTransmission for a datagram, compressing
// it before fragmentation.
func NewOutgoingTransmission(transmissionID byte, datagram []byte, mtu int) (t *OutgoingTransmission, err error) {
	var buf bytes.Buffer
	if xzW, xzErr := xz.NewWriter(&buf); xzErr != nil {
		err = xzErr
		return
	} else if _, err = xzW.Write(datagram); err != nil {
		return
	} else if err = xzW.Close(); err != nil {
		return
	}

	return newPlainOutgoingTransmission(transmissionID, buf.Bytes(), mtu)
}

// newPlainOutgoingTransmission creates an OutgoingTransmission with an uncompressed payload.
func newPlainOutgoingTransmission(transmissionID byte, payload []byte, mtu int) (t *OutgoingTransmission, err error) {
	if mtu <= fragmentIdentifierSize {
		err = fmt.Errorf("MTU of %d leaves no room for payload", mtu)
		return
	}

	t = &OutgoingTransmission{
		Transmission: Transmission{
			TransmissionID: transmissionID,
			Payload:        payload,
			finished:       false,
		},
		mtu:            mtu - fragmentIdentifierSize,
		start:          true,
		nextSequenceNo: 0,
	}
	return
}

// WriteFragment creates the next Fragment for an OutgoingTransmission.
func (t *OutgoingTransmission) WriteFragment() (f Fragment, finished bool, err error) {
	if t.IsFinished() {
		err = fmt.Errorf("Transmission was already marked as finished")
		return
	}

	var nextPayload []byte
	if len(t.Payload) <= t.mtu {
		nextPayload = t.Payload
		t.Payload = nil
		t.finished = true
	} else {
		nextPayload = t.Payload[:t.mtu]
		t.Payload = t.Payload[t.mtu:]
	}

	t.nextSequenceNo = nextSequenceNumber(t.nextSequenceNo)
	f = NewFragment(t.TransmissionID, t.nextSequenceNo, t.start, t.finished, nextPayload)
	t.start = false

	finished = t.IsFinished()
	return
}
