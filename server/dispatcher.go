// Package server routes JSON-RPC messages to the tool registry and binds the
// two transports, framed stdio and HTTP+SSE, to one dispatcher.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/remotegate/remotegate/gateway"
	"github.com/remotegate/remotegate/protocol"
)

// ProtocolVersion is the MCP protocol revision spoken by both transports.
const ProtocolVersion = "2024-11-05"

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

type capabilities struct {
	Tools toolCapabilities `json:"tools"`
}

type toolCapabilities struct {
	ListChanged bool `json:"listChanged"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type listToolsResult struct {
	Tools []gateway.ToolDescriptor `json:"tools"`
}

// Dispatcher handles one JSON-RPC message at a time. It is stateless between
// messages; the only shared state lives behind the registry's backend.
type Dispatcher struct {
	registry *gateway.Registry
	logger   *slog.Logger
	name     string
	version  string
}

// NewDispatcher builds a dispatcher over the tool registry. name and version
// are reported in the initialize handshake.
func NewDispatcher(registry *gateway.Registry, name, version string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{registry: registry, logger: logger, name: name, version: version}
}

// Handle decodes one raw JSON-RPC message and returns the serialized
// response, or nil for notifications. It never fails: malformed input and
// internal faults come back as JSON-RPC error objects.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return marshal(protocol.NewError(nil, protocol.ErrInternalError, fmt.Sprintf("invalid JSON-RPC message: %v", err)))
	}

	if msg.IsNotification() {
		// notifications/initialized and anything else without an id: no
		// response goes back, defined or not.
		d.logger.DebugContext(ctx, "notification", "method", msg.Method)
		return nil
	}

	return marshal(d.handleRequest(ctx, &msg))
}

func (d *Dispatcher) handleRequest(ctx context.Context, msg *protocol.Message) *protocol.Message {
	switch msg.Method {
	case "initialize":
		return protocol.NewResponse(msg.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    capabilities{Tools: toolCapabilities{ListChanged: false}},
			ServerInfo:      serverInfo{Name: d.name, Version: d.version},
		})

	case "tools/list":
		return protocol.NewResponse(msg.ID, listToolsResult{Tools: d.registry.List()})

	case "tools/call":
		var params protocol.CallParams
		if len(msg.Params) > 0 {
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return protocol.NewError(msg.ID, protocol.ErrInternalError, fmt.Sprintf("invalid tools/call params: %v", err))
			}
		}
		result, err := d.registry.Dispatch(ctx, params.Name, params.Arguments)
		if err != nil {
			if errors.Is(err, gateway.ErrUnknownTool) {
				return protocol.NewError(msg.ID, protocol.ErrMethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name))
			}
			return protocol.NewError(msg.ID, protocol.ErrInternalError, err.Error())
		}
		return protocol.NewResponse(msg.ID, result)

	default:
		return protocol.NewError(msg.ID, protocol.ErrMethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method))
	}
}

func marshal(msg *protocol.Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		// Result types are all plain structs and strings; this cannot fire
		// unless a handler leaks an unmarshalable value.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"response serialization failed"}}`)
	}
	return data
}
