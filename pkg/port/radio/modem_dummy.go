// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package radio

import (
	"fmt"
	"io"
	"sync"
)

// dummyHub links dummyModems together, like a shared radio channel. It may be configured
// to drop every n-th Fragment to simulate a lossy medium.
type dummyHub struct {
	mutex  sync.Mutex
	modems []*dummyModem

	fragmentCounter int
	fragmentDrop    int
}

// newDummyHub creates a lossless dummyHub.
func newDummyHub() *dummyHub {
	return &dummyHub{}
}

// newDummyHubDrop creates a dummyHub dropping every n-th Fragment.
func newDummyHubDrop(n int) *dummyHub {
	return &dummyHub{fragmentDrop: n}
}

func (hub *dummyHub) connect(modem *dummyModem) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	hub.modems = append(hub.modems, modem)
}

func (hub *dummyHub) broadcast(sender *dummyModem, f Fragment) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	hub.fragmentCounter++
	if hub.fragmentDrop != 0 && hub.fragmentCounter%hub.fragmentDrop == 0 {
		return
	}

	for _, modem := range hub.modems {
		if modem != sender {
			modem.deliver(f)
		}
	}
}

// dummyModem is a development and testing Modem, exchanging Fragments over a dummyHub.
type dummyModem struct {
	mtu int
	hub *dummyHub

	inChan chan Fragment

	closeOnce sync.Once
	closedSyn chan struct{}
}

// newDummyModem creates a dummyModem attached to a dummyHub.
func newDummyModem(mtu int, hub *dummyHub) *dummyModem {
	modem := &dummyModem{
		mtu:       mtu,
		hub:       hub,
		inChan:    make(chan Fragment, 32),
		closedSyn: make(chan struct{}),
	}
	hub.connect(modem)

	return modem
}

func (modem *dummyModem) deliver(f Fragment) {
	select {
	case modem.inChan <- f:
	default:
		// A deaf modem loses Fragments, just like the real medium.
	}
}

func (modem *dummyModem) Mtu() int {
	return modem.mtu
}

func (modem *dummyModem) Send(f Fragment) error {
	select {
	case <-modem.closedSyn:
		return io.EOF
	default:
	}

	modem.hub.broadcast(modem, f)
	return nil
}

func (modem *dummyModem) Receive() (Fragment, error) {
	select {
	case f := <-modem.inChan:
		return f, nil
	case <-modem.closedSyn:
		return Fragment{}, io.EOF
	}
}

func (modem *dummyModem) Close() error {
	modem.closeOnce.Do(func() { close(modem.closedSyn) })
	return nil
}

func (modem *dummyModem) String() string {
	return fmt.Sprintf("dummy,mtu:%d", modem.mtu)
}
