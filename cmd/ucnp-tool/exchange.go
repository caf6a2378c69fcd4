// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/ucnp-go/pkg/agent"
)

// exchange datagrams between an user and an ucnpd over the filesystem.
type exchange struct {
	directory     string
	knownFiles    sync.Map
	websocketConn *agent.WebSocketAgentConnector
	watcher       *fsnotify.Watcher

	closeChan        chan os.Signal
	datagramReadChan chan []byte
}

// startExchange to exchange datagrams between client and an ucnpd.
func startExchange(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		name          = args[1]
		directory     = args[2]

		err error
	)

	ex := &exchange{
		directory:        directory,
		closeChan:        make(chan os.Signal, 1),
		datagramReadChan: make(chan []byte),
	}

	signal.Notify(ex.closeChan, os.Interrupt)

	if ex.websocketConn, err = agent.NewWebSocketAgentConnector(websocketAddr, name); err != nil {
		printFatal(err, "Starting WebSocketAgentConnector errored")
	}

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	go ex.handleDatagramRead()
	ex.handler()
}

// cleanFilepath creates a relative path from the initial path to a new file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
		return ""
	} else {
		return rel
	}
}

func (ex *exchange) handler() {
	defer func() {
		_ = ex.watcher.Close()
		ex.websocketConn.Close()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case data, ok := <-ex.datagramReadChan:
			if !ok {
				log.Error("Datagram reader channel was closed")
				return
			}

			digest := sha256.Sum256(data)
			filePath := path.Join(ex.directory, hex.EncodeToString(digest[:8]))
			logger := log.WithFields(log.Fields{
				"bytes": len(data),
				"file":  filePath,
			})

			if err := os.WriteFile(filePath, data, 0644); err != nil {
				logger.WithError(err).Error("Creating file errored")
				return
			}

			ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

			logger.Info("Saved received datagram")
		}
	}
}

func (ex *exchange) readNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if data, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if err := ex.websocketConn.WriteDatagram(data); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"file":  e.Name,
				"bytes": len(data),
			}).Error("Sending datagram errored")
			return
		} else {
			log.WithFields(log.Fields{
				"file":  e.Name,
				"bytes": len(data),
			}).Info("Sent datagram")
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

func (ex *exchange) handleDatagramRead() {
	for {
		if data, err := ex.websocketConn.ReadDatagram(); err != nil {
			log.WithError(err).Error("Reading datagram errored")

			close(ex.datagramReadChan)
			return
		} else {
			ex.datagramReadChan <- data
		}
	}
}
