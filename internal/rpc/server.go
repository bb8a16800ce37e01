// Package rpc serves the gateway operations over line delimited JSON-RPC.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/slok/agentgw/internal/log"
)

const maxLineBytes = 32 * 1024 * 1024

// methodHandler handles a JSON-RPC method call.
type methodHandler func(ctx context.Context, params json.RawMessage) (any, *Error)

// ServerConfig is the configuration of the RPC server.
type ServerConfig struct {
	In  io.Reader
	Out io.Writer
	// Tools is the tool catalog served by tools/list and tools/call.
	Tools   *Tools
	Name    string
	Version string
	Logger  log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.In == nil {
		return fmt.Errorf("input is required")
	}

	if c.Out == nil {
		return fmt.Errorf("output is required")
	}

	if c.Tools == nil {
		return fmt.Errorf("tools are required")
	}

	if c.Name == "" {
		c.Name = "agentgw"
	}

	if c.Version == "" {
		c.Version = "dev"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "rpc.Server"})

	return nil
}

// Server reads one request per line and writes one response per line. Requests
// are handled one at a time in arrival order.
type Server struct {
	in      io.Reader
	out     *bufio.Writer
	tools   *Tools
	name    string
	version string
	methods map[string]methodHandler
	logger  log.Logger
}

// NewServer returns a new RPC server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		in:      cfg.In,
		out:     bufio.NewWriter(cfg.Out),
		tools:   cfg.Tools,
		name:    cfg.Name,
		version: cfg.Version,
		logger:  cfg.Logger,
	}
	s.methods = map[string]methodHandler{
		"initialize":                s.handleInitialize,
		"notifications/initialized": s.handleNoop,
		"ping":                      s.handlePing,
		"tools/list":                s.handleToolsList,
		"tools/call":                s.handleToolsCall,
	}

	return s, nil
}

// Run serves requests until the input ends or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte, 64)
	readErr := make(chan error, 1)

	// Reader.
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	// Worker.
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				s.logger.Infof("Input closed, stopping")
				return nil
			}

			if err := s.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) error {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debugf("Discarding malformed line: %s", err)
		return nil
	}
	if req.Method == "" {
		s.logger.Debugf("Discarding request without method")
		return nil
	}

	logger := s.logger.WithValues(log.Kv{"method": req.Method})
	result, rpcErr := s.dispatch(ctx, req)

	if req.IsNotification() {
		if rpcErr != nil {
			logger.Debugf("Notification failed: %s", rpcErr.Message)
		}
		return nil
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			logger.Errorf("Could not marshal result: %s", err)
			rpcErr = NewError(ErrCodeInternalError, ErrMsgInternalError)
		} else {
			resp.Result = raw
		}
	}
	resp.Error = rpcErr

	return s.write(resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) (result any, rpcErr *Error) {
	if req.JSONRPC != "2.0" {
		return nil, NewError(ErrCodeInvalidRequest, "jsonrpc version must be '2.0'")
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		return nil, NewError(ErrCodeMethodNotFound, ErrMsgMethodNotFound)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic handling %s: %v", req.Method, r)
			result, rpcErr = nil, NewError(ErrCodeInternalError, ErrMsgInternalError)
		}
	}()

	return handler(ctx, req.Params)
}

func (s *Server) write(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("could not marshal response: %w", err)
	}

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	if err := s.out.Flush(); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	return nil
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    map[string]any     `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

func (s *Server) handleInitialize(_ context.Context, params json.RawMessage) (any, *Error) {
	var p initializeParams
	if len(params) > 0 {
		// Unknown shapes fall back to the latest version.
		_ = json.Unmarshal(params, &p)
	}

	version := p.ProtocolVersion
	if version == "" {
		version = mcp.LATEST_PROTOCOL_VERSION
	}

	return initializeResult{
		ProtocolVersion: version,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      mcp.Implementation{Name: s.name, Version: s.version},
	}, nil
}

func (s *Server) handleNoop(context.Context, json.RawMessage) (any, *Error) {
	return nil, nil
}

func (s *Server) handlePing(context.Context, json.RawMessage) (any, *Error) {
	return struct{}{}, nil
}

func (s *Server) handleToolsList(context.Context, json.RawMessage) (any, *Error) {
	return mcp.ListToolsResult{Tools: s.tools.List()}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *Error) {
	var req mcp.CallToolRequest
	if err := json.Unmarshal(params, &req.Params); err != nil {
		return nil, NewError(ErrCodeInvalidParams, ErrMsgInvalidParams)
	}

	res, err := s.tools.Call(ctx, req)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		s.logger.Errorf("Tool %s failed: %s", req.Params.Name, err)
		return nil, NewError(ErrCodeInternalError, ErrMsgInternalError)
	}

	return res, nil
}
