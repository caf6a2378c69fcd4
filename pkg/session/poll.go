// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"time"

	"github.com/dtn7/ucnp-go/pkg/frame"
)

// Event classifies what ended a Poll.
type Event uint8

const (
	// EventNone means the timeout elapsed without payload or connection change.
	EventNone Event = iota

	// EventData means a payload arrived; PollResult.Data carries it.
	EventData

	// EventStateChanged means the connection came up or went down.
	EventStateChanged
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventData:
		return "data"
	case EventStateChanged:
		return "state-changed"
	default:
		return "INVALID"
	}
}

// PollResult is the outcome of one Poll call. State is always the Session's
// state after the call.
type PollResult struct {
	Event Event
	Data  []byte
	State State
}

// Poll drives the protocol for at most timeout: pending datagrams are
// processed, Discovery is re-broadcasted periodically while detecting, and a
// Keepalive goes out when a standing connection idles. Poll returns early
// with EventData once a payload was delivered, or with EventStateChanged once
// the connection came up or went down. Otherwise it naps between receive
// attempts until the timeout elapsed and returns EventNone, which is no
// error. Cancelling the context interrupts the nap and surfaces the context's
// error.
//
// Carrier errors surface as the error value next to an EventNone result. They
// are not fatal; a later Poll may succeed again.
func (s *Session) Poll(ctx context.Context, timeout time.Duration) (PollResult, error) {
	deadline := time.Now().Add(timeout)

	for {
		delivered, changed, err := s.pump()
		switch {
		case err != nil:
			return PollResult{Event: EventNone, State: s.state}, err
		case delivered != nil:
			return PollResult{Event: EventData, Data: delivered, State: s.state}, nil
		case changed:
			return PollResult{Event: EventStateChanged, State: s.state}, nil
		}

		if s.state == StateDetecting && time.Since(s.lastAnnounce) >= s.announceInterval {
			s.lastAnnounce = time.Now()
			if err := s.sendFrame(frame.Discovery, 0, discoverPayload(s.id)); err != nil {
				return PollResult{Event: EventNone, State: s.state}, err
			}
		}

		if s.state == StateConnected && time.Since(s.lastSent) >= s.keepaliveInterval {
			if err := s.sendFrame(frame.Keepalive, s.peerID, nil); err != nil {
				return PollResult{Event: EventNone, State: s.state}, err
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return PollResult{Event: EventNone, State: s.state}, nil
		}

		nap := s.pollInterval
		if remaining < nap {
			nap = remaining
		}

		timer := time.NewTimer(nap)
		select {
		case <-ctx.Done():
			timer.Stop()
			return PollResult{Event: EventNone, State: s.state}, ctx.Err()
		case <-timer.C:
		}
	}
}
