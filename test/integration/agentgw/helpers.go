package agentgw

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slok/agentgw/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "agentgw"
	}

	// go test changes the CWD to the test package directory.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("AGENTGW_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("agentgw binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "AGENTGW_INTEGRATION"
		envBinary     = "AGENTGW_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env is an isolated gateway environment for a single test.
type Env struct {
	DataDir string
	Workdir string
	ToolBin string
}

// NewEnv creates the directories of a test gateway and a fake wrapped tool that
// prints its arguments and its execution home.
func NewEnv(t *testing.T) Env {
	t.Helper()

	dir := t.TempDir()
	e := Env{
		DataDir: filepath.Join(dir, "data"),
		Workdir: filepath.Join(dir, "workspace"),
		ToolBin: filepath.Join(dir, "fake-codex"),
	}

	script := "#!/bin/sh\necho \"home=$CODEX_HOME\"\necho \"args=$*\"\n"
	if err := os.WriteFile(e.ToolBin, []byte(script), 0o755); err != nil {
		t.Fatalf("could not write fake tool: %s", err)
	}

	return e
}

// RunCmd runs an agentgw command on the test environment.
func RunCmd(ctx context.Context, config Config, e Env, cmdArgs string, stdin []byte) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--no-log --data-dir %s --workdir %s --tool-bin %s %s", e.DataDir, e.Workdir, e.ToolBin, cmdArgs)
	return testutils.RunAgentGW(ctx, nil, config.Binary, args, bytes.NewReader(stdin))
}

// Request is a JSON-RPC request line.
type Request struct {
	ID     int    `json:"id,omitempty"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is a JSON-RPC response line.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Serve runs the gateway with the requests as stdin and returns the response
// lines once the input is exhausted.
func Serve(ctx context.Context, config Config, e Env, reqs ...Request) ([]Response, error) {
	var in bytes.Buffer
	for _, r := range reqs {
		line, err := json.Marshal(struct {
			JSONRPC string `json:"jsonrpc"`
			Request
		}{JSONRPC: "2.0", Request: r})
		if err != nil {
			return nil, err
		}
		in.Write(line)
		in.WriteByte('\n')
	}

	stdout, stderr, err := RunCmd(ctx, config, e, "serve", in.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serve failed: %w: %s", err, stderr)
	}

	var resps []Response
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r Response
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("invalid response line %q: %w", line, err)
		}
		resps = append(resps, r)
	}

	return resps, sc.Err()
}
