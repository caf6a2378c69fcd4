// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
)

// RestAgent is a RESTful ApplicationAgent for tooling where a WebSocket is too much,
// e.g., curl. Clients register a name against a UUID and poll their mailbox.
type RestAgent struct {
	router *mux.Router

	receiver chan Message
	sender   chan Message

	// map UUIDs to names and pending inbound payloads
	clients sync.Map // uuid[string] -> name[string]
	mailbox sync.Map // uuid[string] -> [][]byte

	stateMutex sync.Mutex
	state      StateMessage
}

// NewRestAgent creates a new RESTful ApplicationAgent on the given router.
func NewRestAgent(router *mux.Router) (ra *RestAgent) {
	ra = &RestAgent{
		router: router,

		receiver: make(chan Message),
		sender:   make(chan Message),
	}

	ra.router.HandleFunc("/register", ra.handleRegister).Methods(http.MethodPost)
	ra.router.HandleFunc("/unregister", ra.handleUnregister).Methods(http.MethodPost)
	ra.router.HandleFunc("/send", ra.handleSend).Methods(http.MethodPost)
	ra.router.HandleFunc("/fetch", ra.handleFetch).Methods(http.MethodPost)
	ra.router.HandleFunc("/status", ra.handleStatus).Methods(http.MethodGet)

	go ra.handler()

	return ra
}

// handler distributes Messages from the daemon into the clients' mailboxes.
func (ra *RestAgent) handler() {
	defer close(ra.sender)

	for msg := range ra.receiver {
		switch msg := msg.(type) {
		case ShutdownMessage:
			return

		case DatagramMessage:
			ra.clients.Range(func(uuid, name interface{}) bool {
				if rec := msg.Recipients(); rec == nil || bagContainsName(rec, []string{name.(string)}) {
					ra.storePayload(uuid.(string), msg.Payload)
				}
				return true
			})

		case StateMessage:
			ra.stateMutex.Lock()
			ra.state = msg
			ra.stateMutex.Unlock()

		default:
			log.WithField("message", msg).Debug("RestAgent ignores message")
		}
	}
}

// forward hands a Message to the daemon. A send on the closed channel after a
// shutdown surfaces as an error instead of a panic.
func (ra *RestAgent) forward(msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent is shutting down")
		}
	}()

	ra.sender <- msg
	return
}

func (ra *RestAgent) storePayload(uuid string, payload []byte) {
	var payloads [][]byte
	if stored, ok := ra.mailbox.Load(uuid); ok {
		payloads = stored.([][]byte)
	}
	ra.mailbox.Store(uuid, append(payloads, payload))
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint, e.g., /rest.
func (ra *RestAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ra.router.ServeHTTP(w, r)
}

// randomUuid to be used for authentication. UUID does not comply with RFC 4122.
func (_ *RestAgent) randomUuid() (uuid string, err error) {
	uuidBytes := make([]byte, 16)
	if _, err = rand.Read(uuidBytes); err == nil {
		uuid = fmt.Sprintf("%x-%x-%x-%x-%x",
			uuidBytes[0:4], uuidBytes[4:6], uuidBytes[6:8], uuidBytes[8:10], uuidBytes[10:16])
	}
	return
}

// handleRegister processes /register POST requests.
func (ra *RestAgent) handleRegister(w http.ResponseWriter, r *http.Request) {
	var (
		registerRequest  RestRegisterRequest
		registerResponse RestRegisterResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&registerRequest); jsonErr != nil {
		registerResponse.Error = jsonErr.Error()
	} else if registerRequest.Name == "" {
		registerResponse.Error = "name must not be empty"
	} else if uuid, uuidErr := ra.randomUuid(); uuidErr != nil {
		registerResponse.Error = uuidErr.Error()
	} else {
		ra.clients.Store(uuid, registerRequest.Name)
		registerResponse.UUID = uuid
	}

	log.WithFields(log.Fields{
		"request":  registerRequest,
		"response": registerResponse,
	}).Info("Processing REST registration")

	if err := json.NewEncoder(w).Encode(registerResponse); err != nil {
		log.WithError(err).Warn("Failed to write REST registration response")
	}
}

// handleUnregister processes /unregister POST requests.
func (ra *RestAgent) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var (
		unregisterRequest  RestUnregisterRequest
		unregisterResponse RestUnregisterResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&unregisterRequest); jsonErr != nil {
		log.WithError(jsonErr).Warn("Failed to parse REST unregistration request")
	} else {
		log.WithField("uuid", unregisterRequest.UUID).Info("Unregister REST client")
		ra.clients.Delete(unregisterRequest.UUID)
		ra.mailbox.Delete(unregisterRequest.UUID)
	}

	if err := json.NewEncoder(w).Encode(unregisterResponse); err != nil {
		log.WithError(err).Warn("Failed to write REST unregistration response")
	}
}

// handleSend processes /send POST requests, forwarding a payload to the daemon.
func (ra *RestAgent) handleSend(w http.ResponseWriter, r *http.Request) {
	var (
		sendRequest  RestSendRequest
		sendResponse RestSendResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&sendRequest); jsonErr != nil {
		sendResponse.Error = jsonErr.Error()
	} else if _, ok := ra.clients.Load(sendRequest.UUID); !ok {
		sendResponse.Error = "no client for this UUID"
	} else if len(sendRequest.Payload) == 0 {
		sendResponse.Error = "payload must not be empty"
	} else if err := ra.forward(DatagramMessage{Payload: sendRequest.Payload}); err != nil {
		sendResponse.Error = err.Error()
	} else {
		log.WithField("bytes", len(sendRequest.Payload)).Info("REST client sends datagram")
	}

	if err := json.NewEncoder(w).Encode(sendResponse); err != nil {
		log.WithError(err).Warn("Failed to write REST send response")
	}
}

// handleFetch processes /fetch POST requests, emptying the client's mailbox.
func (ra *RestAgent) handleFetch(w http.ResponseWriter, r *http.Request) {
	var (
		fetchRequest  RestFetchRequest
		fetchResponse RestFetchResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&fetchRequest); jsonErr != nil {
		fetchResponse.Error = jsonErr.Error()
	} else if _, ok := ra.clients.Load(fetchRequest.UUID); !ok {
		fetchResponse.Error = "no client for this UUID"
	} else if payloads, ok := ra.mailbox.LoadAndDelete(fetchRequest.UUID); ok {
		fetchResponse.Payloads = payloads.([][]byte)
	}

	if err := json.NewEncoder(w).Encode(fetchResponse); err != nil {
		log.WithError(err).Warn("Failed to write REST fetch response")
	}
}

// handleStatus processes /status GET requests with the last known Session snapshot.
func (ra *RestAgent) handleStatus(w http.ResponseWriter, _ *http.Request) {
	ra.stateMutex.Lock()
	state := ra.state
	ra.stateMutex.Unlock()

	statusResponse := RestStatusResponse{
		State:  state.State,
		Local:  fmt.Sprintf("%08x", state.Local),
		Peer:   fmt.Sprintf("%08x", state.Peer),
		Method: state.Method,
	}

	if err := json.NewEncoder(w).Encode(statusResponse); err != nil {
		log.WithError(err).Warn("Failed to write REST status response")
	}
}

// Names of all registered REST clients.
func (ra *RestAgent) Names() (names []string) {
	ra.clients.Range(func(_, name interface{}) bool {
		names = append(names, name.(string))
		return true
	})
	return
}

func (ra *RestAgent) MessageReceiver() chan Message {
	return ra.receiver
}

func (ra *RestAgent) MessageSender() chan Message {
	return ra.sender
}
