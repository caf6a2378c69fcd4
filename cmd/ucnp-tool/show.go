// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/dtn7/ucnp-go/pkg/agent"
)

// showState for the "show" CLI option.
func showState(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	wac, err := agent.NewWebSocketAgentConnector(args[0], "ucnp-tool-show")
	if err != nil {
		printFatal(err, "Starting WebSocketAgentConnector errored")
	}
	defer wac.Close()

	state, err := wac.State(time.Second)
	if err != nil {
		printFatal(err, "Requesting state errored")
	}

	fmt.Printf("state:   %s\n", state.State)
	fmt.Printf("local:   %08x\n", state.Local)
	fmt.Printf("peer:    %08x\n", state.Peer)
	fmt.Printf("carrier: %s\n", state.Method)
}
