package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Codes used for transport failures that carry no HTTP or JSON-RPC code.
const (
	CodeTimeout      = "TIMEOUT"
	CodeNetworkError = "NETWORK_ERROR"
	CodeUnknown      = "UNKNOWN"
)

// ErrorObject is the error member of a JSON-RPC response.
type ErrorObject struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error is a failed RPC call. Code is TIMEOUT, NETWORK_ERROR, the HTTP status
// or the JSON-RPC error code, all as strings.
type Error struct {
	Code      string
	Message   string
	Details   string
	Status    int
	Timeout   bool
	Retryable bool
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("rpc %s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("rpc %s: %s", e.Code, e.Message)
}

// NormalizedError is the app-facing shape of any RPC failure.
type NormalizedError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// IsErrorResponse reports whether v is a JSON-RPC 2.0 error response: version
// "2.0", an id that is a string, number or null, an error with a numeric code
// and non-blank message, and no result member. v may be raw JSON bytes or an
// already decoded object.
func IsErrorResponse(v any) bool {
	m, ok := asObject(v)
	if !ok {
		return false
	}
	if m["jsonrpc"] != "2.0" {
		return false
	}
	id, ok := m["id"]
	if !ok {
		return false
	}
	if id != nil {
		if _, isStr := id.(string); !isStr && !isNumber(id) {
			return false
		}
	}
	errObj, ok := m["error"].(map[string]any)
	if !ok {
		return false
	}
	if !isNumber(errObj["code"]) {
		return false
	}
	msg, ok := errObj["message"].(string)
	if !ok || strings.TrimSpace(msg) == "" {
		return false
	}
	_, hasResult := m["result"]
	return !hasResult
}

// NormalizeError folds JSON-RPC error responses, *Error values, other errors,
// strings and loose {code, message, retryable} objects into one shape.
func NormalizeError(input any) NormalizedError {
	if IsErrorResponse(input) {
		m, _ := asObject(input)
		errObj := m["error"].(map[string]any)
		code, _ := toInt64(errObj["code"])
		msg, _ := errObj["message"].(string)
		return NormalizedError{
			Code:      strconv.FormatInt(code, 10),
			Message:   msg,
			Retryable: retryableCode(code),
		}
	}

	switch e := input.(type) {
	case nil:
	case error:
		var rpcErr *Error
		if errors.As(e, &rpcErr) {
			return NormalizedError{
				Code:      orDefault(rpcErr.Code, CodeUnknown),
				Message:   orDefault(rpcErr.Message, "Unknown Error"),
				Retryable: rpcErr.Retryable,
			}
		}
		return NormalizedError{Code: CodeUnknown, Message: orDefault(e.Error(), "Unknown Error")}
	case string:
		if strings.TrimSpace(e) != "" {
			return NormalizedError{Code: CodeUnknown, Message: e}
		}
	case []byte, json.RawMessage:
		// raw bytes that are not an error response carry nothing usable
	default:
		if m, ok := asObject(input); ok {
			msg, _ := m["message"].(string)
			code := ""
			switch c := m["code"].(type) {
			case string:
				code = c
			default:
				if n, ok := toInt64(c); ok {
					code = strconv.FormatInt(n, 10)
				}
			}
			retryable, _ := m["retryable"].(bool)
			if msg != "" || code != "" {
				return NormalizedError{
					Code:      orDefault(code, CodeUnknown),
					Message:   orDefault(msg, "Unknown Error"),
					Retryable: retryable,
				}
			}
		}
	}
	return NormalizedError{Code: CodeUnknown, Message: "Unknown Error"}
}

// retryableCode: -32603 internal error and the -32099..-32000 server range.
func retryableCode(code int64) bool {
	return code == -32603 || (code >= -32099 && code <= -32000)
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []byte:
		return decodeObject(t)
	case json.RawMessage:
		return decodeObject(t)
	}
	return nil, false
}

func decodeObject(b []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number:
		return true
	case nil:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toInt64(v any) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		i, err := n.Int64()
		return i, err == nil
	}
	if !isNumber(v) {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	default:
		return rv.Int(), true
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
