// Package rpc talks JSON-RPC 2.0 to a Soroban RPC server.
package rpc

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// ErrEmptyMethod is returned by BuildRequest for a blank method name.
var ErrEmptyMethod = errors.New("JSON-RPC method name cannot be empty")

// BuildRequest wraps method and params in a 2.0 envelope.
func BuildRequest(method string, params any, id int64) (Request, error) {
	if strings.TrimSpace(method) == "" {
		return Request{}, ErrEmptyMethod
	}
	return Request{JSONRPC: "2.0", Method: method, Params: params, ID: id}, nil
}

var lastID atomic.Int64

// NextRequestID returns a process-wide increasing request id starting at 1.
func NextRequestID() int64 {
	return lastID.Add(1)
}

// RequestIDFromSeed derives a repeatable positive id from seed. Non-finite
// seeds and seeds that truncate to zero map to 1.
func RequestIDFromSeed(seed float64) int64 {
	if math.IsNaN(seed) || math.IsInf(seed, 0) {
		return 1
	}
	abs := math.Abs(math.Trunc(seed))
	if abs == 0 {
		return 1
	}
	if abs >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(abs)
}

// HTTPClass is the retry class of a failed HTTP status.
type HTTPClass string

const (
	ClassRetryable HTTPClass = "retryable"
	ClassFatal     HTTPClass = "fatal"
	ClassUnknown   HTTPClass = "unknown"
)

// ClassifyHTTPStatus: 429 and 5xx are retryable, other 4xx fatal, anything
// else unknown.
func ClassifyHTTPStatus(code int) HTTPClass {
	switch {
	case code == 429:
		return ClassRetryable
	case code >= 500 && code < 600:
		return ClassRetryable
	case code >= 400 && code < 500:
		return ClassFatal
	default:
		return ClassUnknown
	}
}
