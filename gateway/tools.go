package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/remotegate/remotegate/output"
)

// Tool defaults exposed through the schemas.
const (
	DefaultExecTimeout = 60
	DefaultMaxLines    = 1000
)

// ErrUnknownTool is returned by Dispatch for names outside the fixed tool
// set. The dispatcher maps it to a JSON-RPC method-not-found error.
var ErrUnknownTool = errors.New("unknown tool")

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// InputSchema is the JSON-schema-shaped parameter descriptor of one tool.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDescriptor is the protocol-discovery view of one tool.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// Content is one entry of a tool-call result. Only text is produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the outcome of one tools/call. Handler failures are data:
// IsError is set and the text describes the fault, the protocol layer above
// always sees a normal result.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

func textResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(err error) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}}, IsError: true}
}

// Registry holds the fixed tool set and dispatches calls to the backend.
// Built once at startup; read-only afterwards.
type Registry struct {
	backend        Backend
	tools          []ToolDescriptor
	logger         *slog.Logger
	maxOutputBytes int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxOutputBytes bounds the stdout/stderr of execute results. Zero
// disables truncation.
func WithMaxOutputBytes(n int) RegistryOption {
	return func(r *Registry) { r.maxOutputBytes = n }
}

// NewRegistry builds the registry over one backend. target names the machine
// in the tool descriptions.
func NewRegistry(backend Backend, target string, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		backend:        backend,
		tools:          describeTools(target),
		logger:         logger,
		maxOutputBytes: output.DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the full descriptor set.
func (r *Registry) List() []ToolDescriptor {
	return r.tools
}

// Dispatch routes one tool call. Every fault inside a handler, including
// connection failures, is converted to an IsError result here; nothing
// propagates past this boundary except ErrUnknownTool.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (CallResult, error) {
	start := time.Now()
	result, err := r.dispatch(ctx, name, args)
	if err != nil {
		return CallResult{}, err
	}
	r.logger.InfoContext(ctx, "tool call",
		"tool", name,
		"is_error", result.IsError,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (r *Registry) dispatch(ctx context.Context, name string, args json.RawMessage) (CallResult, error) {
	switch name {
	case "execute":
		return r.handleExecute(ctx, args), nil
	case "read_file":
		return r.handleReadFile(ctx, args), nil
	case "write_file":
		return r.handleWriteFile(ctx, args), nil
	case "list_directory":
		return r.handleListDirectory(ctx, args), nil
	case "connection_status":
		return textResult(r.backend.Status(ctx)), nil
	default:
		return CallResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

type executeInput struct {
	Command          string `json:"command"`
	WorkingDirectory string `json:"working_directory"`
	Timeout          int    `json:"timeout"`
}

func (r *Registry) handleExecute(ctx context.Context, args json.RawMessage) CallResult {
	var in executeInput
	if err := decodeArgs(args, &in); err != nil {
		return errorResult(err)
	}
	if in.Command == "" {
		return errorResult(errors.New("command is required"))
	}
	if in.Timeout <= 0 {
		in.Timeout = DefaultExecTimeout
	}

	out, err := r.backend.Run(ctx, in.Command, in.WorkingDirectory, time.Duration(in.Timeout)*time.Second)
	if err != nil {
		return errorResult(err)
	}
	out.Stdout, _ = output.Truncate(out.Stdout, r.maxOutputBytes)
	out.Stderr, _ = output.Truncate(out.Stderr, r.maxOutputBytes)
	return textResult(FormatOutcome(out))
}

type readFileInput struct {
	Path     string `json:"path"`
	MaxLines int    `json:"max_lines"`
}

func (r *Registry) handleReadFile(ctx context.Context, args json.RawMessage) CallResult {
	var in readFileInput
	if err := decodeArgs(args, &in); err != nil {
		return errorResult(err)
	}
	if in.Path == "" {
		return errorResult(errors.New("path is required"))
	}
	if in.MaxLines <= 0 {
		in.MaxLines = DefaultMaxLines
	}

	content, err := r.backend.ReadFile(ctx, in.Path, in.MaxLines)
	if err != nil {
		return textResult(fmt.Sprintf("Error reading file: %v", err))
	}
	return textResult(content)
}

type writeFileInput struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

func (r *Registry) handleWriteFile(ctx context.Context, args json.RawMessage) CallResult {
	var in writeFileInput
	if err := decodeArgs(args, &in); err != nil {
		return errorResult(err)
	}
	if in.Path == "" {
		return errorResult(errors.New("path is required"))
	}
	if in.Content == nil {
		return errorResult(errors.New("content is required"))
	}

	if err := r.backend.WriteFile(ctx, in.Path, *in.Content); err != nil {
		return errorResult(err)
	}
	return textResult(fmt.Sprintf("Successfully wrote to %s", in.Path))
}

type listDirectoryInput struct {
	Path       string `json:"path"`
	ShowHidden *bool  `json:"show_hidden"`
}

func (r *Registry) handleListDirectory(ctx context.Context, args json.RawMessage) CallResult {
	var in listDirectoryInput
	if err := decodeArgs(args, &in); err != nil {
		return errorResult(err)
	}
	if in.Path == "" {
		return errorResult(errors.New("path is required"))
	}
	showHidden := true
	if in.ShowHidden != nil {
		showHidden = *in.ShowHidden
	}

	listing, err := r.backend.ListDir(ctx, in.Path, showHidden)
	if err != nil {
		return textResult(fmt.Sprintf("Error listing directory: %v", err))
	}
	return textResult(listing)
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func describeTools(target string) []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "execute",
			Description: fmt.Sprintf("Execute a shell command on %s", target),
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"command": {
						Type:        "string",
						Description: "The shell command to execute",
					},
					"working_directory": {
						Type:        "string",
						Description: "Optional working directory for the command",
					},
					"timeout": {
						Type:        "integer",
						Description: "Command timeout in seconds (default: 60)",
						Default:     DefaultExecTimeout,
					},
				},
				Required: []string{"command"},
			},
		},
		{
			Name:        "read_file",
			Description: fmt.Sprintf("Read a file from %s", target),
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {
						Type:        "string",
						Description: "The absolute path to the file to read",
					},
					"max_lines": {
						Type:        "integer",
						Description: "Maximum number of lines to read (default: 1000)",
						Default:     DefaultMaxLines,
					},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "write_file",
			Description: fmt.Sprintf("Write content to a file on %s", target),
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {
						Type:        "string",
						Description: "The absolute path to the file to write",
					},
					"content": {
						Type:        "string",
						Description: "The content to write to the file",
					},
				},
				Required: []string{"path", "content"},
			},
		},
		{
			Name:        "list_directory",
			Description: fmt.Sprintf("List contents of a directory on %s", target),
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {
						Type:        "string",
						Description: "The absolute path to the directory",
					},
					"show_hidden": {
						Type:        "boolean",
						Description: "Whether to show hidden files (default: true)",
						Default:     true,
					},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "connection_status",
			Description: fmt.Sprintf("Check the connection status to %s", target),
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
	}
}
