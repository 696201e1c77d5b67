// Package protocol defines the JSON-RPC 2.0 message model shared by both
// transports.
package protocol

import "encoding/json"

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes used by the dispatcher.
const (
	ErrMethodNotFound = -32601
	ErrInternalError  = -32603
)

// Message is the decoded form of any inbound or outbound JSON-RPC payload.
// A request carries Method and ID; a notification carries Method without ID;
// a response carries exactly one of Result or Error. The ID is kept raw so a
// string or integer id is echoed back byte for byte.
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *ErrorObject     `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC error response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsNotification reports whether m is a notification: a method call that
// carries no id and must not elicit a response.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// NewResponse builds a successful response for the request id.
func NewResponse(id *json.RawMessage, result any) *Message {
	return &Message{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response for the request id.
func NewError(id *json.RawMessage, code int, message string) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

// CallParams are the params of a tools/call request.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
