// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
)

// printUsage of ucnp-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s show|send|watch|exchange:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s show websocket\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the daemon's connection state, identities and carrier.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s send websocket name -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends the stdin (-) or the given file (filename) as one datagram to the peer,\n")
	_, _ = fmt.Fprintf(os.Stderr, "  registered under the client name.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s watch websocket name\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints inbound datagrams to stdout until an interrupt signal arrives.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s exchange websocket name directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  %s registers itself as an agent on the given websocket and writes\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  inbound datagrams into the directory. If the user drops a new file in the\n")
	_, _ = fmt.Fprintf(os.Stderr, "  directory, it will be sent to the peer.\n\n")

	os.Exit(1)
}

// printFatal prints a message and an error to stderr and exits afterwards.
func printFatal(err error, msg string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "show":
		showState(os.Args[2:])

	case "send":
		sendDatagram(os.Args[2:])

	case "watch":
		watchDatagrams(os.Args[2:])

	case "exchange":
		startExchange(os.Args[2:])

	default:
		printUsage()
	}
}
