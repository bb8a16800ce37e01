package testutils

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(" +")

// RunAgentGW executes an agentgw command with the given arguments string (split by spaces).
// Use RunAgentGWArgs when arguments contain spaces that should be preserved.
func RunAgentGW(ctx context.Context, env []string, binary, cmdArgs string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmdArgs = strings.TrimSpace(cmdArgs)
	cmdArgs = multiSpaceRegex.ReplaceAllString(cmdArgs, " ")

	var args []string
	if cmdArgs != "" {
		args = strings.Split(cmdArgs, " ")
	}

	return RunAgentGWArgs(ctx, env, binary, args, stdin)
}

// RunAgentGWArgs executes an agentgw command with pre-split arguments. The
// custom env is set over the current environment, last key wins.
func RunAgentGWArgs(ctx context.Context, env []string, binary string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	cmd.Env = newEnv

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}
