// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package port

import (
	"fmt"
	"sync"
)

// Hub wires Pipes together and mimics a shared broadcast medium in memory.
// Every datagram sent over one Pipe reaches the Slots of all other Pipes.
type Hub struct {
	mutex sync.Mutex
	pipes []*Pipe

	datagramCounter int
	datagramDrop    int
}

// NewHub creates a Hub delivering every datagram.
func NewHub() *Hub {
	return &Hub{}
}

// NewHubDrop creates a Hub which drops each nth datagram.
func NewHubDrop(n int) *Hub {
	return &Hub{datagramDrop: n}
}

// connect a Pipe to this Hub. This method is called from the NewPipe function.
func (h *Hub) connect(p *Pipe) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.pipes = append(h.pipes, p)
}

// broadcast delivers a datagram to every connected Pipe except its sender.
func (h *Hub) broadcast(sender *Pipe, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.datagramCounter++
	if h.datagramDrop != 0 && h.datagramCounter%h.datagramDrop == 0 {
		return
	}

	for _, p := range h.pipes {
		if p != sender {
			p.slot.Store(data, sender.tag)
		}
	}
}

// Pipe is an in-memory Port attached to a Hub.
type Pipe struct {
	hub *Hub
	tag uint32

	slot Slot

	mutex  sync.Mutex
	closed bool
}

// NewPipe attaches a new Pipe to a Hub. The tag is reported as the sending
// identity to receiving Pipes; zero leaves datagrams unattributed.
func NewPipe(hub *Hub, tag uint32) *Pipe {
	p := &Pipe{
		hub: hub,
		tag: tag,
	}
	hub.connect(p)

	return p
}

func (p *Pipe) isClosed() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.closed
}

// Send broadcasts a datagram to all other Pipes on the Hub. The destination
// identity is ignored; an in-memory medium has no addressing.
func (p *Pipe) Send(_ uint32, data []byte) error {
	if p.isClosed() {
		return ErrUnavailable
	}

	p.hub.broadcast(p, data)
	return nil
}

// Receive returns the pending datagram, if any.
func (p *Pipe) Receive(max int) ([]byte, uint32, error) {
	if p.isClosed() {
		return nil, 0, ErrUnavailable
	}

	data, from := p.slot.Take(max)
	return data, from, nil
}

// Close detaches this Pipe. Subsequent Sends and Receives fail.
func (p *Pipe) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrUnavailable
	}

	p.closed = true
	return nil
}

func (p *Pipe) Address() string {
	return fmt.Sprintf("pipe/%08x", p.tag)
}
