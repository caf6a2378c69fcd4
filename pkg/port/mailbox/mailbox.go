// SPDX-FileCopyrightText: 2023 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailbox moves datagrams through files in a shared directory and is the
// always available fallback carrier.
//
// Every endpoint owns one file in the directory, named after its identity. A send
// truncates the own file; a receive picks the most recently modified file of another
// endpoint, reads it and deletes it. Nothing locks: a reader may catch a half written
// file, which the CRC trailer behind each datagram uncovers. This mechanism stands in
// for a hardware side channel and is meant for demonstrations and tests on one machine,
// not for production deployments.
package mailbox

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/howeyc/crc16"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/port"
)

// DefaultDir is used if no directory is configured.
const DefaultDir = "/tmp/ucnp-mailbox"

// filePrefix starts each endpoint's file name, followed by eight hex digits.
const filePrefix = "ucnp."

var crcTable = crc16.MakeTable(crc16.CCITT)

// Mailbox is a file based Port. It must know the local identity because the
// own file's name attributes outgoing datagrams to this endpoint.
type Mailbox struct {
	dir     string
	localID uint32

	mutex  sync.Mutex
	closed bool
}

// New creates a Mailbox for the given identity below dir, creating the
// directory if necessary. An empty dir selects DefaultDir.
func New(dir string, localID uint32) (*Mailbox, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("creating mailbox directory: %w", err)
	}

	return &Mailbox{
		dir:     dir,
		localID: localID,
	}, nil
}

func (m *Mailbox) isClosed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.closed
}

// ownFile is the file outgoing datagrams are written to.
func (m *Mailbox) ownFile() string {
	return filepath.Join(m.dir, fmt.Sprintf("%s%08x", filePrefix, m.localID))
}

// Send writes the datagram with its CRC trailer into the own file, replacing
// an unread previous datagram. The destination is ignored; everybody scans
// the same directory.
func (m *Mailbox) Send(_ uint32, data []byte) error {
	if m.isClosed() {
		return port.ErrUnavailable
	}

	buf := make([]byte, len(data)+2)
	copy(buf, data)
	binary.BigEndian.PutUint16(buf[len(data):], crc16.Checksum(data, crcTable))

	if err := os.WriteFile(m.ownFile(), buf, 0666); err != nil {
		return err
	}

	m.logger().WithField("bytes", len(data)).Debug("Wrote datagram")
	return nil
}

// Receive scans the directory for the most recently modified file of another
// endpoint, reads and deletes it. Files with a broken CRC trailer are deleted
// and skipped silently; a torn read looks like a lost datagram.
func (m *Mailbox) Receive(max int) ([]byte, uint32, error) {
	if m.isClosed() {
		return nil, 0, port.ErrUnavailable
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, 0, err
	}

	var (
		bestPath  string
		bestID    uint32
		bestMtime int64
	)

	for _, entry := range entries {
		sender, ok := senderOf(entry.Name())
		if !ok || sender == m.localID {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if mtime := info.ModTime().UnixNano(); bestPath == "" || mtime > bestMtime {
			bestPath = filepath.Join(m.dir, entry.Name())
			bestID = sender
			bestMtime = mtime
		}
	}

	if bestPath == "" {
		return nil, 0, nil
	}

	buf, err := os.ReadFile(bestPath)
	if err != nil {
		return nil, 0, err
	}
	_ = os.Remove(bestPath)

	if len(buf) < 2 {
		m.logger().WithField("file", bestPath).Debug("Dropping runt datagram file")
		return nil, 0, nil
	}

	data, trailer := buf[:len(buf)-2], binary.BigEndian.Uint16(buf[len(buf)-2:])
	if crc16.Checksum(data, crcTable) != trailer {
		m.logger().WithField("file", bestPath).Debug("Dropping datagram with broken trailer")
		return nil, 0, nil
	}

	if len(data) > max {
		data = data[:max]
	}

	m.logger().WithFields(log.Fields{
		"bytes": len(data),
		"from":  fmt.Sprintf("%08x", bestID),
	}).Debug("Read datagram")

	return data, bestID, nil
}

// Close removes the own file so no stale datagram outlives this endpoint.
func (m *Mailbox) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return port.ErrUnavailable
	}
	m.closed = true

	if err := os.Remove(m.ownFile()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Mailbox) Address() string {
	return fmt.Sprintf("mailbox://%s", m.dir)
}

func (m *Mailbox) logger() *log.Entry {
	return log.WithField("mailbox", m.Address())
}

// senderOf extracts the sending identity from a mailbox file name.
func senderOf(name string) (uint32, bool) {
	if !strings.HasPrefix(name, filePrefix) {
		return 0, false
	}

	hex := strings.TrimPrefix(name, filePrefix)
	if len(hex) != 8 {
		return 0, false
	}

	id, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
