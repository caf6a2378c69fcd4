// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/ucnp-go/pkg/agent"
	"github.com/dtn7/ucnp-go/pkg/session"
)

// pollTimeout is the upper bound for one Poll before the daemon checks back
// on its agents.
const pollTimeout = 50 * time.Millisecond

// daemon glues one Session to the ApplicationAgents and drives both.
type daemon struct {
	session *session.Session
	agents  *agent.MuxAgent

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	stopSyn chan struct{}
	stopAck chan struct{}
}

// newDaemon assembles the agents around a Session. An empty listen address
// starts no HTTP server; the daemon then runs headless.
func newDaemon(s *session.Session, agentListen string) (d *daemon) {
	ctx, cancel := context.WithCancel(context.Background())

	d = &daemon{
		session: s,
		agents:  agent.NewMuxAgent(),

		ctx:    ctx,
		cancel: cancel,

		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	if agentListen != "" {
		wsAgent := agent.NewWebSocketAgent()
		d.agents.Register(wsAgent)

		router := mux.NewRouter()
		router.HandleFunc("/ws", wsAgent.ServeHTTP)

		restAgent := agent.NewRestAgent(router.PathPrefix("/rest").Subrouter())
		d.agents.Register(restAgent)

		d.httpServer = &http.Server{
			Addr:    agentListen,
			Handler: router,
		}

		go func() {
			if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Agent HTTP server errored")
			}
		}()

		log.WithField("address", agentListen).Info("Serving agents")
	}

	return
}

// run drives the Session and the agents until Close is called. The Session is
// not synchronized; everything touching it happens on this goroutine.
func (d *daemon) run() {
	d.broadcastState()

	for {
		select {
		case <-d.stopSyn:
			d.teardown()
			close(d.stopAck)
			return

		default:
		}

		d.drainAgents()

		result, pollErr := d.session.Poll(d.ctx, pollTimeout)
		if pollErr != nil {
			if errors.Is(pollErr, context.Canceled) {
				continue
			}

			log.WithError(pollErr).Warn("Polling the carrier errored")
			continue
		}

		switch result.Event {
		case session.EventData:
			d.agents.MessageReceiver() <- agent.DatagramMessage{Payload: result.Data}

		case session.EventStateChanged:
			d.broadcastState()
		}
	}
}

// drainAgents empties the agents' outgoing channel without blocking.
func (d *daemon) drainAgents() {
	for {
		select {
		case msg := <-d.agents.MessageSender():
			d.handleAgentMessage(msg)

		default:
			return
		}
	}
}

func (d *daemon) handleAgentMessage(msg agent.Message) {
	switch msg := msg.(type) {
	case agent.DatagramMessage:
		if _, err := d.session.Send(msg.Payload); err != nil {
			log.WithError(err).WithField("bytes", len(msg.Payload)).Warn("Sending datagram errored")
		}

	case agent.StateRequestMessage:
		d.broadcastState()

	default:
		log.WithField("message", msg).Debug("Daemon ignores agent message")
	}
}

// broadcastState pushes the Session's current snapshot to every agent client.
// State requests are answered this way too; an extra snapshot hurts nobody.
func (d *daemon) broadcastState() {
	d.agents.MessageReceiver() <- agent.StateMessage{
		State:  d.session.State().String(),
		Local:  d.session.ID(),
		Peer:   d.session.PeerID(),
		Method: d.session.Method().String(),
	}
}

func (d *daemon) teardown() {
	var errs *multierror.Error

	d.agents.MessageReceiver() <- agent.ShutdownMessage{}

	if d.httpServer != nil {
		if err := d.httpServer.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := d.session.Shutdown(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("Shutdown errored")
	}
}

// Close stops the daemon and blocks until the teardown finished.
func (d *daemon) Close() {
	d.cancel()
	close(d.stopSyn)
	<-d.stopAck
}
