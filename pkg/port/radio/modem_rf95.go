// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package radio

import (
	"fmt"

	"github.com/dtn7/rf95modem-go/rf95"
	log "github.com/sirupsen/logrus"
)

// Rf95Modem is a Modem for rf95modem-driven LoRa hardware, connected over a serial device.
type Rf95Modem struct {
	device string
	modem  *rf95.Modem
}

// NewRf95Modem creates a Rf95Modem for a serial device, e.g., /dev/ttyUSB0.
func NewRf95Modem(device string) (rfModem *Rf95Modem, err error) {
	if m, mErr := rf95.OpenSerial(device); mErr != nil {
		err = mErr
	} else {
		rfModem = &Rf95Modem{
			device: device,
			modem:  m,
		}
	}

	return
}

// Frequency changes the Rf95Modem's frequency, specified in MHz.
func (rfModem *Rf95Modem) Frequency(frequency float64) error {
	log.WithFields(log.Fields{
		"modem":     rfModem,
		"frequency": frequency,
	}).Debug("Rf95Modem changes frequency")

	return rfModem.modem.Frequency(frequency)
}

// Mode changes the Rf95Modem's rf95.ModemMode.
func (rfModem *Rf95Modem) Mode(mode rf95.ModemMode) error {
	log.WithFields(log.Fields{
		"modem": rfModem,
		"mode":  mode,
	}).Debug("Rf95Modem changes mode")

	return rfModem.modem.Mode(mode)
}

// Mtu returns the rf95modem's maximum transmission unit.
func (rfModem *Rf95Modem) Mtu() (mtu int) {
	mtu, _ = rfModem.modem.Mtu()
	return
}

// Send a Fragment over the modem's configured channel.
func (rfModem *Rf95Modem) Send(f Fragment) (err error) {
	_, err = rfModem.modem.Write(f.Bytes())
	return
}

// Receive the next Fragment from the modem.
func (rfModem *Rf95Modem) Receive() (f Fragment, err error) {
	buf := make([]byte, rfModem.Mtu())
	if n, readErr := rfModem.modem.Read(buf); readErr != nil {
		err = readErr
	} else {
		f, err = ParseFragment(buf[:n])
	}

	return
}

// Close the underlying serial connection.
func (rfModem *Rf95Modem) Close() error {
	return rfModem.modem.Close()
}

func (rfModem *Rf95Modem) String() string {
	if status, err := rfModem.modem.FetchStatus(); err != nil {
		return fmt.Sprintf("rf95modem:%s", rfModem.device)
	} else {
		return fmt.Sprintf("rf95modem:%s,freq:%.2f,mode:%d", rfModem.device, status.Frequency, status.Mode)
	}
}
