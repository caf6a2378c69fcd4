// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

// RestRegisterRequest describes a JSON to be POSTed to /register.
type RestRegisterRequest struct {
	Name string `json:"name"`
}

// RestRegisterResponse describes a JSON response for /register.
type RestRegisterResponse struct {
	Error string `json:"error"`
	UUID  string `json:"uuid"`
}

// RestUnregisterRequest describes a JSON to be POSTed to /unregister.
type RestUnregisterRequest struct {
	UUID string `json:"uuid"`
}

// RestUnregisterResponse describes a JSON response for /unregister.
type RestUnregisterResponse struct{}

// RestSendRequest describes a JSON to be POSTed to /send. The payload travels
// base64 encoded, as encoding/json does with byte slices.
type RestSendRequest struct {
	UUID    string `json:"uuid"`
	Payload []byte `json:"payload"`
}

// RestSendResponse describes a JSON response for /send.
type RestSendResponse struct {
	Error string `json:"error"`
}

// RestFetchRequest describes a JSON to be POSTed to /fetch.
type RestFetchRequest struct {
	UUID string `json:"uuid"`
}

// RestFetchResponse describes a JSON response for /fetch, carrying all pending
// inbound payloads for this client.
type RestFetchResponse struct {
	Error    string   `json:"error"`
	Payloads [][]byte `json:"payloads"`
}

// RestStatusResponse describes a JSON response for /status. Identities are eight
// hex digits, zero-padded.
type RestStatusResponse struct {
	State  string `json:"state"`
	Local  string `json:"local"`
	Peer   string `json:"peer"`
	Method string `json:"method"`
}
