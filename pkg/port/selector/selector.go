// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package selector probes the machine for usable carriers and picks the best one.
//
// Probing follows a fixed preference: a LoRa radio beats the network, the network beats
// Type-C assisted mailboxes, and plain mailbox polling catches everything else. The
// choice happens once, before the first protocol frame, and is permanent afterwards;
// switching carriers mid-session would break the peer's expectations quietly.
//
// Detect never fails. A probe that errors logs its reason and falls through to the
// next one, and with everything down an unconnected in-memory pipe stands in, leaving
// the endpoint deaf but alive.
package selector

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/port"
	"github.com/dtn7/ucnp-go/pkg/port/mailbox"
	"github.com/dtn7/ucnp-go/pkg/port/quicport"
	"github.com/dtn7/ucnp-go/pkg/port/radio"
	"github.com/dtn7/ucnp-go/pkg/typec"
)

// Config narrows the probing down. A zero value skips its probe or falls back to a
// package default, documented per field.
type Config struct {
	// Identity is the local endpoint identity, handed to carriers which attribute
	// traffic, e.g. the mailbox's file names.
	Identity uint32

	// RadioDevice is a serial device carrying an rf95modem, e.g. /dev/ttyUSB0.
	// Empty skips the radio probe.
	RadioDevice string

	// QUICListen is a UDP listen address, e.g. ":4600". Empty skips the network
	// probe.
	QUICListen string

	// QUICPeer is the peer's address for the network probe: "host:port",
	// quicport.PeerAuto for the multicast beacon, or empty to only accept.
	QUICPeer string

	// TypeCPort is a Type-C connector's sysfs path; empty selects
	// typec.DefaultPortPath. The connector only upgrades the reported Method,
	// the datagrams still travel through the mailbox.
	TypeCPort string

	// MailboxDir is the shared mailbox directory; empty selects
	// mailbox.DefaultDir.
	MailboxDir string
}

// Detect probes carriers in order of preference and returns the first usable one,
// tagged with its Method. Failed probes are logged; Detect itself never fails.
func Detect(cfg Config) (port.Method, port.Port) {
	method, p, probeErr := probe(cfg)

	if err := probeErr.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("Some carrier probes failed")
	}
	log.WithFields(log.Fields{
		"method":  method,
		"address": p.Address(),
	}).Info("Selected carrier")

	return method, p
}

func probe(cfg Config) (port.Method, port.Port, *multierror.Error) {
	var probeErr *multierror.Error

	if cfg.RadioDevice != "" {
		if modem, err := radio.NewRf95Modem(cfg.RadioDevice); err != nil {
			probeErr = multierror.Append(probeErr, fmt.Errorf("radio %s: %w", cfg.RadioDevice, err))
		} else {
			return port.MethodRadio, radio.New(modem), probeErr
		}
	}

	if cfg.QUICListen != "" {
		if endpoint, err := quicport.New(cfg.QUICListen, cfg.QUICPeer, cfg.Identity); err != nil {
			probeErr = multierror.Append(probeErr, fmt.Errorf("quic %s: %w", cfg.QUICListen, err))
		} else {
			return port.MethodNetwork, endpoint, probeErr
		}
	}

	// An attached Type-C partner upgrades the reported method; the mailbox stays the
	// carrier underneath, standing in for the connector's out-of-band channel.
	method := port.MethodPolling
	tcPath := cfg.TypeCPort
	if tcPath == "" {
		tcPath = typec.DefaultPortPath
	}
	if tc := typec.NewPort(tcPath); tc.Exists() && tc.PartnerPresent() {
		if tc.VDMCapable() {
			method = port.MethodPDVDM
		} else {
			method = port.MethodTypeC
		}
		log.WithFields(log.Fields{
			"connector": tc,
			"status":    fmt.Sprintf("%+v", tc.Status()),
		}).Debug("Type-C connector has a partner")
	}

	if mb, err := mailbox.New(cfg.MailboxDir, cfg.Identity); err != nil {
		probeErr = multierror.Append(probeErr, fmt.Errorf("mailbox: %w", err))
	} else {
		return method, mb, probeErr
	}

	return port.MethodPolling, port.NewPipe(port.NewHub(), cfg.Identity), probeErr
}
