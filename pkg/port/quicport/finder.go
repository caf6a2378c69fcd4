// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quicport

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/dtn7/cboring"
	"github.com/schollz/peerdiscovery"
	log "github.com/sirupsen/logrus"
)

const (
	// finderAddress4 is the multicast IPv4 group for beacons.
	finderAddress4 = "224.23.42.23"

	// finderPort is the multicast UDP port for beacons.
	finderPort = 35041

	// finderInterval is the pause between two of our own beacons.
	finderInterval = 2 * time.Second
)

// beacon announces an Endpoint's identity and QUIC listen port on the local network.
type beacon struct {
	Identity uint32
	Port     uint
}

// MarshalCbor writes this beacon's CBOR representation.
func (b *beacon) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteUInt(uint64(b.Identity), w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(b.Port), w); err != nil {
		return err
	}

	return nil
}

// UnmarshalCbor reads a beacon from its CBOR representation.
func (b *beacon) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("beacon expects 2 fields, not %d", l)
	}

	if identity, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		b.Identity = uint32(identity)
	}

	if quicPort, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		b.Port = uint(quicPort)
	}

	return nil
}

func (b beacon) String() string {
	return fmt.Sprintf("beacon(%08x,:%d)", b.Identity, b.Port)
}

// Finder beacons the local Endpoint on the network and dials every foreign Endpoint
// it hears about. It backs the "auto" peer setting.
type Finder struct {
	endpoint *Endpoint
	stopChan chan struct{}
}

// newFinder starts beaconing for an Endpoint. The listen address carries the actual
// UDP port, relevant when listening on ":0".
func newFinder(endpoint *Endpoint, listenAddr net.Addr) (*Finder, error) {
	_, portStr, err := net.SplitHostPort(listenAddr.String())
	if err != nil {
		return nil, err
	}
	quicPort, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	b := beacon{Identity: endpoint.identity, Port: uint(quicPort)}
	var payload bytes.Buffer
	if err := cboring.Marshal(&b, &payload); err != nil {
		return nil, err
	}

	finder := &Finder{
		endpoint: endpoint,
		stopChan: make(chan struct{}),
	}

	settings := peerdiscovery.Settings{
		Limit:            -1,
		Port:             strconv.Itoa(finderPort),
		MulticastAddress: finderAddress4,
		Payload:          payload.Bytes(),
		Delay:            finderInterval,
		TimeLimit:        -1,
		StopChan:         finder.stopChan,
		AllowSelf:        true,
		IPVersion:        peerdiscovery.IPv4,
		Notify:           finder.notify,
	}

	// An immediate error, e.g. a missing multicast route, surfaces here; afterwards
	// the discovery runs on its own.
	discoverErrChan := make(chan error)
	go func() {
		_, discoverErr := peerdiscovery.Discover(settings)
		discoverErrChan <- discoverErr
	}()

	select {
	case discoverErr := <-discoverErrChan:
		if discoverErr != nil {
			return nil, discoverErr
		}

	case <-time.After(time.Second):
	}

	log.WithField("beacon", b).Info("Finder started beaconing")

	return finder, nil
}

// notify handles one received beacon, our own included thanks to AllowSelf.
func (finder *Finder) notify(discovered peerdiscovery.Discovered) {
	var b beacon
	if err := cboring.Unmarshal(&b, bytes.NewBuffer(discovered.Payload)); err != nil {
		log.WithError(err).WithField("peer", discovered.Address).Warn("Parsing beacon errored")
		return
	}

	if b.Identity == finder.endpoint.identity {
		return
	}

	target := net.JoinHostPort(discovered.Address, strconv.Itoa(int(b.Port)))
	log.WithFields(log.Fields{
		"beacon": b,
		"target": target,
	}).Debug("Finder heard a foreign beacon")

	finder.endpoint.dialPeer(target)
}

func (finder *Finder) close() {
	close(finder.stopChan)
}
