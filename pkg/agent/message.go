// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

// Message is a generic interface to specify an information exchange between an
// ApplicationAgent and the daemon. The following types named *Message are
// implementations of this interface.
type Message interface {
	// Recipients returns a list of client names to which this message is addressed.
	// However, if this message is not addressed to some specific client, nil must be
	// returned.
	Recipients() []string
}

// DatagramMessage carries one payload.
// If the Message is received from an ApplicationAgent, it is an outgoing payload for
// the peer. If the Message is sent to an ApplicationAgent, it is an inbound payload
// from the peer.
type DatagramMessage struct {
	Payload []byte

	// Clients restricts delivery to specific registered names; nil broadcasts.
	Clients []string
}

// Recipients are the addressed clients of this DatagramMessage, nil for everybody.
func (dm DatagramMessage) Recipients() []string {
	return dm.Clients
}

// StateMessage is a snapshot of the Session, sent to ApplicationAgents whenever the
// connection state changes or a StateRequestMessage asks for it.
type StateMessage struct {
	State  string
	Local  uint32
	Peer   uint32
	Method string
}

// Recipients are not available for a StateMessage; every client may see it.
func (sm StateMessage) Recipients() []string {
	return nil
}

// StateRequestMessage is sent from an ApplicationAgent to request a fresh
// StateMessage.
type StateRequestMessage struct {
	Sender string
}

// Recipients are the sender of the StateRequestMessage.
func (srm StateRequestMessage) Recipients() []string {
	return []string{srm.Sender}
}

// ShutdownMessage indicates the closing down of an ApplicationAgent.
// If the Message is received from an ApplicationAgent, it must close itself down.
// If the Message is sent from an ApplicationAgent, it is closing down itself.
type ShutdownMessage struct{}

// Recipients are not available for a ShutdownMessage.
func (sm ShutdownMessage) Recipients() []string {
	return nil
}
