// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

// ApplicationAgent is an interface to describe application agents, which can both
// receive and transmit datagrams. Each implementation must provide the following
// methods to communicate its client names. Furthermore two channels must be available,
// one for receiving and one for sending Messages.
//
// On closing down, an ApplicationAgent MUST close its MessageSender channel and MUST
// leave the MessageReceiver open. The supervising code MUST close the MessageReceiver
// of its subjects.
type ApplicationAgent interface {
	// Names returns the client names this ApplicationAgent answers to.
	Names() []string

	// MessageReceiver is a channel on which the ApplicationAgent must listen for
	// incoming Messages.
	MessageReceiver() chan Message

	// MessageSender is a channel to which the ApplicationAgent can send outgoing
	// Messages.
	MessageSender() chan Message
}

// bagContainsName checks if some bag/array/slice of names contains another collection
// of names.
func bagContainsName(bag []string, names []string) bool {
	matches := map[string]struct{}{}

	for _, name := range names {
		matches[name] = struct{}{}
	}

	for _, name := range bag {
		if _, ok := matches[name]; ok {
			return true
		}
	}
	return false
}

// AppAgentContainsName checks if an ApplicationAgent answers to at least one of the
// requested names.
func AppAgentContainsName(app ApplicationAgent, names []string) bool {
	return bagContainsName(app.Names(), names)
}

// AppAgentHasName checks if an ApplicationAgent answers to this name.
func AppAgentHasName(app ApplicationAgent, name string) bool {
	return AppAgentContainsName(app, []string{name})
}
