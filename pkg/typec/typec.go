// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package typec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Port is one Type-C connector below /sys/class/typec.
type Port struct {
	path string
}

// NewPort wraps the connector at the given sysfs path, e.g. DefaultPortPath.
// The path is not checked; a missing connector shows up through Exists.
func NewPort(path string) Port {
	return Port{path: path}
}

func (p Port) String() string {
	return fmt.Sprintf("typec(%s)", p.path)
}

// Path returns the connector's sysfs path.
func (p Port) Path() string {
	return p.path
}

// Exists reports if the connector is present in sysfs.
func (p Port) Exists() bool {
	st, err := os.Stat(p.path)
	return err == nil && st.IsDir()
}

// PartnerPresent reports if a partner is attached, i.e. a cable connects this
// connector to another endpoint. The kernel creates a portX-partner directory
// next to the connector while a partner is around.
func (p Port) PartnerPresent() bool {
	st, err := os.Stat(p.path + "-partner")
	return err == nil && st.IsDir()
}

// PowerDelivery reports if the kernel exposes USB Power Delivery information
// for this connector.
func (p Port) PowerDelivery() bool {
	st, err := os.Stat(filepath.Join(p.path, "usb_power_delivery"))
	return err == nil && st.IsDir()
}

// VDMCapable reports if source capabilities are exported, which hints at a
// Power Delivery controller usable for vendor defined messages.
func (p Port) VDMCapable() bool {
	_, err := os.Stat(filepath.Join(p.path, "usb_power_delivery", "source_capabilities"))
	return err == nil
}

// Attribute reads a single sysfs attribute of this connector, e.g. "data_role",
// with surrounding whitespace stripped.
func (p Port) Attribute(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.path, name))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// Status is a diagnostic snapshot of a connector. Attributes the kernel does
// not provide stay empty.
type Status struct {
	Path          string
	Present       bool
	Partner       bool
	PowerDelivery bool
	DataRole      string
	PowerRole     string
	Orientation   string
}

// Status reads a best effort snapshot of this connector.
func (p Port) Status() (s Status) {
	s.Path = p.path
	s.Present = p.Exists()
	if !s.Present {
		return
	}

	s.Partner = p.PartnerPresent()
	s.PowerDelivery = p.PowerDelivery()
	s.DataRole, _ = p.Attribute("data_role")
	s.PowerRole, _ = p.Attribute("power_role")
	s.Orientation, _ = p.Attribute("orientation")
	return
}
