// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"io"
	"os"

	"github.com/dtn7/ucnp-go/pkg/agent"
)

// sendDatagram for the "send" CLI option.
func sendDatagram(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		name          = args[1]
		dataInput     = args[2]

		err  error
		data []byte
	)

	if dataInput == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(dataInput)
	}
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	wac, err := agent.NewWebSocketAgentConnector(websocketAddr, name)
	if err != nil {
		printFatal(err, "Starting WebSocketAgentConnector errored")
	}
	defer wac.Close()

	if err := wac.WriteDatagram(data); err != nil {
		printFatal(err, "Sending datagram errored")
	}
}
