package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/slok/agentgw/internal/app/session"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/printer"
)

// Sessions runs wrapped tool tasks.
type Sessions interface {
	Start(ctx context.Context, req session.StartRequest) (*session.Result, error)
	Resume(ctx context.Context, req session.ResumeRequest) (*session.Result, error)
	Profiles(ctx context.Context) *model.ProfileSet
}

// Files is the sandboxed filesystem.
type Files interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) (int, error)
	List(ctx context.Context, path string) ([]model.DirEntry, error)
}

// ToolHandler handles a tool call. Tool level failures are results with the
// error flag set, returned errors are dispatch failures.
type ToolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

type serverTool struct {
	tool    mcp.Tool
	handler ToolHandler
}

// ToolsConfig is the configuration of the tool catalog.
type ToolsConfig struct {
	Sessions Sessions
	Files    Files
	Logger   log.Logger
}

func (c *ToolsConfig) defaults() error {
	if c.Sessions == nil {
		return fmt.Errorf("sessions are required")
	}

	if c.Files == nil {
		return fmt.Errorf("files are required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "rpc.Tools"})

	return nil
}

// Tools is the catalog of the operations exposed over tools/call.
type Tools struct {
	sessions Sessions
	files    Files
	tools    []serverTool
	byName   map[string]serverTool
	logger   log.Logger
}

// NewTools returns the gateway tool catalog.
func NewTools(cfg ToolsConfig) (*Tools, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	t := &Tools{
		sessions: cfg.Sessions,
		files:    cfg.Files,
		byName:   map[string]serverTool{},
		logger:   cfg.Logger,
	}

	t.add(mcp.NewTool("run-task",
		mcp.WithDescription("Run a task with the agent tool and return its combined output."),
		mcp.WithString("prompt",
			mcp.Description("Task instructions"),
			mcp.Required(),
		),
		mcp.WithString("profile",
			mcp.Description("Profile ID or alias, the default profile when omitted"),
		),
		mcp.WithString("model",
			mcp.Description("Model override for this run"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Timeout in seconds (default: 300)"),
		),
		mcp.WithBoolean("fresh",
			mcp.Description("Start a new task instead of continuing the most recent one (default: true)"),
		),
	), t.handleRunTask)

	t.add(mcp.NewTool("resume-task",
		mcp.WithDescription("Continue the most recent task with new instructions."),
		mcp.WithString("prompt",
			mcp.Description("Follow up instructions"),
			mcp.Required(),
		),
		mcp.WithString("profile",
			mcp.Description("Profile ID or alias, the default profile when omitted"),
		),
	), t.handleResumeTask)

	t.add(mcp.NewTool("list-profiles",
		mcp.WithDescription("List the available profiles, their source and the default profile."),
	), t.handleListProfiles)

	t.add(mcp.NewTool("read-file",
		mcp.WithDescription("Read a text file from the workspace."),
		mcp.WithString("path",
			mcp.Description("Path relative to the workspace"),
			mcp.Required(),
		),
	), t.handleReadFile)

	t.add(mcp.NewTool("write-file",
		mcp.WithDescription("Write a text file in the workspace, creating parent directories."),
		mcp.WithString("path",
			mcp.Description("Path relative to the workspace"),
			mcp.Required(),
		),
		mcp.WithString("content",
			mcp.Description("Full file content"),
			mcp.Required(),
		),
	), t.handleWriteFile)

	t.add(mcp.NewTool("list-files",
		mcp.WithDescription("List a workspace directory."),
		mcp.WithString("path",
			mcp.Description("Directory relative to the workspace (default: .)"),
		),
	), t.handleListFiles)

	return t, nil
}

func (t *Tools) add(tool mcp.Tool, h ToolHandler) {
	st := serverTool{tool: tool, handler: h}
	t.tools = append(t.tools, st)
	t.byName[tool.Name] = st
}

// List returns the tool definitions in registration order.
func (t *Tools) List() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(t.tools))
	for _, st := range t.tools {
		tools = append(tools, st.tool)
	}
	return tools
}

// Call dispatches a tool call by name.
func (t *Tools) Call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, ok := t.byName[req.Params.Name]
	if !ok {
		return nil, NewError(ErrCodeInvalidParams, fmt.Sprintf("Unknown tool: %s", req.Params.Name))
	}

	t.logger.Debugf("Calling tool %s", req.Params.Name)
	return st.handler(ctx, req)
}

func (t *Tools) handleRunTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile := req.GetString("profile", "")
	res, err := t.sessions.Start(ctx, session.StartRequest{
		Prompt:  prompt,
		Profile: profile,
		Model:   req.GetString("model", ""),
		Timeout: secondsToDuration(req.GetFloat("timeout", 0)),
		Fresh:   req.GetBool("fresh", true),
	})
	if err != nil {
		return sessionError(profile, err), nil
	}

	return outcomeResult(res.Outcome)
}

func (t *Tools) handleResumeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile := req.GetString("profile", "")
	res, err := t.sessions.Resume(ctx, session.ResumeRequest{
		Prompt:  prompt,
		Profile: profile,
	})
	if err != nil {
		return sessionError(profile, err), nil
	}

	return outcomeResult(res.Outcome)
}

func (t *Tools) handleListProfiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b bytes.Buffer
	if err := printer.NewTablePrinter(&b).PrintProfiles(t.sessions.Profiles(ctx)); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) handleReadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, err := t.files.Read(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error reading %s: %s", path, err)), nil
	}

	return mcp.NewToolResultText(content), nil
}

func (t *Tools) handleWriteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := t.files.Write(ctx, path, content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error writing %s: %s", path, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", n, path)), nil
}

func (t *Tools) handleListFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", ".")
	if path == "" {
		path = "."
	}

	entries, err := t.files.List(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing %s: %s", path, err)), nil
	}

	var b bytes.Buffer
	if err := printer.NewTablePrinter(&b).PrintEntries(entries); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(b.String()), nil
}

func outcomeResult(o model.ProcessOutcome) (*mcp.CallToolResult, error) {
	var b bytes.Buffer
	if err := printer.NewTablePrinter(&b).PrintOutcome(o); err != nil {
		return nil, err
	}

	if !o.Success() {
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func sessionError(profile string, err error) *mcp.CallToolResult {
	if errors.Is(err, model.ErrUnknownProfile) {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown profile: %s", profile))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error: %s", err))
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	if s >= float64(math.MaxInt64)/float64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(s * float64(time.Second))
}
