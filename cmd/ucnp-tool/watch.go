// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/ucnp-go/pkg/agent"
)

// watchDatagrams for the "watch" CLI option.
func watchDatagrams(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		name          = args[1]
	)

	wac, err := agent.NewWebSocketAgentConnector(websocketAddr, name)
	if err != nil {
		printFatal(err, "Starting WebSocketAgentConnector errored")
	}

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, os.Interrupt)

	readChan := make(chan []byte)
	go func() {
		for {
			if data, err := wac.ReadDatagram(); err != nil {
				log.WithError(err).Error("Reading datagram errored")

				close(readChan)
				return
			} else {
				readChan <- data
			}
		}
	}()

	for {
		select {
		case <-closeChan:
			log.Info("Received interrupt signal")

			wac.Close()
			return

		case data, ok := <-readChan:
			if !ok {
				return
			}

			_, _ = os.Stdout.Write(append(data, '\n'))
		}
	}
}
