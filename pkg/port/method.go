// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package port

// Method names the way a concrete Port was chosen for a Session. The choice
// happens once at startup and stays for the Session's lifetime.
type Method uint8

const (
	// MethodNone means no selection happened yet.
	MethodNone Method = iota

	// MethodRadio is an rf95modem LoRa side channel on a serial device.
	MethodRadio

	// MethodNetwork is QUIC datagrams over an already routed IP link.
	MethodNetwork

	// MethodPDVDM is USB Power Delivery vendor defined messaging, available
	// when the Type-C port controller exports its source capabilities.
	MethodPDVDM

	// MethodTypeC is Type-C sysfs polling on a connector without usable
	// Power Delivery messaging.
	MethodTypeC

	// MethodPolling is the generic fallback, always available.
	MethodPolling
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodRadio:
		return "radio"
	case MethodNetwork:
		return "network"
	case MethodPDVDM:
		return "pd-vdm"
	case MethodTypeC:
		return "typec-sysfs"
	case MethodPolling:
		return "polling"
	default:
		return "INVALID"
	}
}
