// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"io"
	"reflect"

	"github.com/dtn7/cboring"
)

// webAgentMessage describes a message which might be sent over a WebSocketAgent.
// Implementations are available at the end of this file.
type webAgentMessage interface {
	// typeCode is an unique identifier for each message type.
	// A const list of those and a map to a specific type will follow this interface's
	// definition.
	typeCode() uint64

	// CborMarshaler must only be implemented for the type's logic.
	// A generic wrapper for the typeCode is available in the marshalCbor and
	// unmarshalCbor functions.
	cboring.CborMarshaler
}

const (
	wamStatusCode       uint64 = 0
	wamRegisterCode     uint64 = 1
	wamDatagramCode     uint64 = 2
	wamStateRequestCode uint64 = 3
	wamStateCode        uint64 = 4
)

var wamMapping = map[interface{}]reflect.Type{
	wamStatusCode:       reflect.TypeOf(wamStatus{}),
	wamRegisterCode:     reflect.TypeOf(wamRegister{}),
	wamDatagramCode:     reflect.TypeOf(wamDatagram{}),
	wamStateRequestCode: reflect.TypeOf(wamStateRequest{}),
	wamStateCode:        reflect.TypeOf(wamState{}),
}

// marshalCbor writes a webAgentMessage wrapped with its type code as CBOR.
func marshalCbor(wam webAgentMessage, w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(wam.typeCode(), w); err != nil {
		return err
	}

	if err := cboring.Marshal(wam, w); err != nil {
		return err
	}

	return nil
}

// unmarshalCbor reads a new webAgentMessage based on its type code from CBOR.
func unmarshalCbor(r io.Reader) (wam webAgentMessage, err error) {
	if n, arrErr := cboring.ReadArrayLength(r); arrErr != nil {
		err = arrErr
		return
	} else if n != 2 {
		err = fmt.Errorf("expected array of two elements, got %d", n)
		return
	}

	if n, typeErr := cboring.ReadUInt(r); typeErr != nil {
		err = typeErr
		return
	} else if t, ok := wamMapping[n]; !ok {
		err = fmt.Errorf("no known WAM type code %d", n)
		return
	} else {
		wam = reflect.New(t).Interface().(webAgentMessage)
	}

	if wamErr := cboring.Unmarshal(wam, r); wamErr != nil {
		err = wamErr
		return
	}

	return
}

// wamStatus is a webAgentMessage to acknowledge a previous message or report an error
// with a non-empty string. This message might be initiated from both a client or a
// server.
type wamStatus struct {
	errorMsg string
}

// newStatusMessage creates a new wamStatus webAgentMessage.
func newStatusMessage(err error) *wamStatus {
	if err == nil {
		return &wamStatus{""}
	} else {
		return &wamStatus{err.Error()}
	}
}

func (_ *wamStatus) typeCode() uint64 {
	return wamStatusCode
}

func (ws *wamStatus) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(ws.errorMsg, w)
}

func (ws *wamStatus) UnmarshalCbor(r io.Reader) (err error) {
	ws.errorMsg, err = cboring.ReadTextString(r)
	return
}

// wamRegister is a webAgentMessage sent from a client to the server to register itself
// under a name.
type wamRegister struct {
	name string
}

// newRegisterMessage creates a new wamRegister webAgentMessage.
func newRegisterMessage(name string) *wamRegister {
	return &wamRegister{name}
}

func (_ *wamRegister) typeCode() uint64 {
	return wamRegisterCode
}

func (wr *wamRegister) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(wr.name, w)
}

func (wr *wamRegister) UnmarshalCbor(r io.Reader) (err error) {
	wr.name, err = cboring.ReadTextString(r)
	return
}

// wamDatagram is a webAgentMessage carrying a payload.
// This message might be initiated from both a client or a server.
type wamDatagram struct {
	payload []byte
}

// newDatagramMessage creates a new wamDatagram webAgentMessage.
func newDatagramMessage(payload []byte) *wamDatagram {
	return &wamDatagram{payload}
}

func (_ *wamDatagram) typeCode() uint64 {
	return wamDatagramCode
}

func (wd *wamDatagram) MarshalCbor(w io.Writer) error {
	return cboring.WriteByteString(wd.payload, w)
}

func (wd *wamDatagram) UnmarshalCbor(r io.Reader) (err error) {
	wd.payload, err = cboring.ReadByteString(r)
	return
}

// wamStateRequest is a webAgentMessage asking the server for a fresh wamState.
type wamStateRequest struct{}

// newStateRequestMessage creates a new wamStateRequest webAgentMessage.
func newStateRequestMessage() *wamStateRequest {
	return &wamStateRequest{}
}

func (_ *wamStateRequest) typeCode() uint64 {
	return wamStateRequestCode
}

func (wsr *wamStateRequest) MarshalCbor(w io.Writer) error {
	return cboring.WriteArrayLength(0, w)
}

func (wsr *wamStateRequest) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 0 {
		return fmt.Errorf("state request expects 0 fields, not %d", l)
	}
	return nil
}

// wamState is a webAgentMessage with the server's Session snapshot.
type wamState struct {
	state  string
	local  uint32
	peer   uint32
	method string
}

// newStateMessage creates a new wamState webAgentMessage from a StateMessage.
func newStateMessage(sm StateMessage) *wamState {
	return &wamState{
		state:  sm.State,
		local:  sm.Local,
		peer:   sm.Peer,
		method: sm.Method,
	}
}

// stateMessage converts back into the channel-facing StateMessage.
func (wst *wamState) stateMessage() StateMessage {
	return StateMessage{
		State:  wst.state,
		Local:  wst.local,
		Peer:   wst.peer,
		Method: wst.method,
	}
}

func (_ *wamState) typeCode() uint64 {
	return wamStateCode
}

func (wst *wamState) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(wst.state, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(wst.local), w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(wst.peer), w); err != nil {
		return err
	}
	if err := cboring.WriteTextString(wst.method, w); err != nil {
		return err
	}

	return nil
}

func (wst *wamState) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 4 {
		return fmt.Errorf("state expects 4 fields, not %d", l)
	}

	if state, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		wst.state = state
	}

	if local, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		wst.local = uint32(local)
	}

	if peer, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		wst.peer = uint32(peer)
	}

	if method, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		wst.method = method
	}

	return nil
}
