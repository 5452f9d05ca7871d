// Package decoder is the message boundary in front of the ScVal normalizer.
// Callers hand it requests and always get a value back; failures inside the
// normalizer are translated into Error values instead of escaping as panics
// or Go errors.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devblac/state-lens/internal/scval"
)

// Error codes carried by Error.
const (
	CodeNormalizeFailed = "NORMALIZE_FAILED"
	CodePingFailed      = "PING_FAILED"
	CodeWorkerStopped   = "WORKER_STOPPED"
	CodeInvalidRequest  = "INVALID_REQUEST"
)

// Request asks for one ScVal to be normalized, or decoded as an address when
// AsAddress is set.
type Request struct {
	ScVal     *scval.ScVal
	AsAddress bool
}

type wireRequest struct {
	ScVal     json.RawMessage `json:"scVal"`
	AsAddress bool            `json:"asAddress"`
}

// ParseRequest decodes {"scVal": <wire scval>, "asAddress": bool}. A missing
// scVal is not an error; it normalizes to an Invalid fallback.
func ParseRequest(data []byte) (Request, error) {
	var w wireRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req := Request{AsAddress: w.AsAddress}
	if len(w.ScVal) == 0 {
		return req, nil
	}
	v, err := scval.Parse(w.ScVal)
	if err != nil {
		return Request{}, err
	}
	req.ScVal = v
	return req, nil
}

// PingResponse answers a liveness probe.
type PingResponse struct {
	Status string `json:"status"`
}

// ErrorDetails describes the failure that produced a NORMALIZE_FAILED error.
type ErrorDetails struct {
	Name  string `json:"name"`
	Stack string `json:"stack,omitempty"`
}

// Error is a failure reported as a value.
type Error struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// IsError reports whether v is a decoder Error, either as the Go type or as a
// decoded JSON object with a string code and message.
func IsError(v any) bool {
	switch e := v.(type) {
	case *Error:
		return e != nil
	case Error:
		return true
	case map[string]any:
		_, code := e["code"].(string)
		_, msg := e["message"].(string)
		return code && msg
	}
	return false
}

// ResultType tags successful results.
type ResultType string

const (
	ResultValue   ResultType = "value"
	ResultAddress ResultType = "address"
)

// Result is a normalized value, a normalized address (possibly nil), or an
// Error. Exactly one of the three is meaningful; Err wins when set.
type Result struct {
	Type    ResultType
	Value   scval.Value
	Address *scval.NormalizedAddress
	Err     *Error
}

// IsError reports whether the result carries an Error.
func (r Result) IsError() bool {
	return r.Err != nil
}

// MarshalJSON emits {"type":"value","value":...}, {"type":"address","value":...}
// or the bare error object.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	switch r.Type {
	case ResultAddress:
		return json.Marshal(struct {
			Type  ResultType               `json:"type"`
			Value *scval.NormalizedAddress `json:"value"`
		}{r.Type, r.Address})
	case ResultValue:
		return json.Marshal(struct {
			Type  ResultType  `json:"type"`
			Value scval.Value `json:"value"`
		}{r.Type, r.Value})
	}
	return nil, errors.New("result has no type")
}

func failed(code, message string, details *ErrorDetails) Result {
	return Result{Err: &Error{Code: code, Message: message, Details: details}}
}
