/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept on a StatusError.
const maxErrorBody = 2048

// StatusError is returned by Call when the upstream answers with a non-2xx status.
// The body is kept so callers can inspect upstream error payloads.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// ToJsonReq converts a Go object to a JSON-encoded HTTP request payload.
//
// Parameters:
// - payload interface{}: The data structure to be serialized into JSON.
//
// Returns:
// - *bytes.Buffer: The JSON-encoded payload wrapped in a bytes buffer, ready to be sent in a request.
// - error: An error if the JSON marshalling process fails.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, e := json.Marshal(payload)
	if e != nil {
		return nil, e
	}
	return bytes.NewBuffer(c), nil
}

// Call sends req with the given client and decodes a JSON response body into response.
// A nil client falls back to http.DefaultClient. A nil response skips decoding.
//
// Parameters:
// - client *http.Client: The client used to send the request.
// - req *http.Request: The prepared HTTP request to send.
// - response interface{}: The target structure to hold the decoded JSON response.
//
// Returns:
// - *http.Response: The raw HTTP response object. Its body is already consumed and closed.
// - error: A *StatusError for non-2xx answers, or the transport/decoding error.
func Call(client *http.Client, req *http.Request, response interface{}) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, Body: string(body)}
	}

	if response == nil || resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil && err != io.EOF {
		return resp, err
	}
	return resp, nil
}

// BasicAuth generates a basic HTTP authentication string by encoding the provided username and password.
//
// Returns:
// - string: base64 of "username:password", without the "Basic " prefix.
func BasicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}
