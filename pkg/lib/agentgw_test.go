package lib_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentgw/pkg/lib"
)

// newTestClient creates a client with temp directories and a fake wrapped tool
// that prints its arguments.
func newTestClient(t *testing.T, script string) (*lib.Client, lib.Config) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-codex")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	cfg := lib.Config{
		DataDir:    filepath.Join(dir, "data"),
		Workdir:    filepath.Join(dir, "workspace"),
		ToolBinary: tool,
		Env:        map[string]string{"SDK_TEST": "yes"},
	}

	client, err := lib.New(context.Background(), cfg)
	require.NoError(t, err)

	return client, cfg
}

func TestRunTask(t *testing.T) {
	tests := map[string]struct {
		script     string
		opts       lib.RunTaskOpts
		expProfile string
		expStdout  string
		expSuccess bool
		expErr     error
	}{
		"A task should run with the default profile.": {
			script:     `echo "$*"`,
			opts:       lib.RunTaskOpts{Prompt: "hello"},
			expProfile: "default",
			expStdout:  "exec --skip-git-repo-check --dangerously-bypass-approvals-and-sandbox hello\n",
			expSuccess: true,
		},

		"An alias should run the canonical profile.": {
			script:     `echo "$*"`,
			opts:       lib.RunTaskOpts{Prompt: "hello", Profile: "fast"},
			expProfile: "o4-mini",
			expStdout:  "exec --skip-git-repo-check --dangerously-bypass-approvals-and-sandbox --profile o4-mini hello\n",
			expSuccess: true,
		},

		"Continuing a task should resume the last one.": {
			script:     `echo "$*"`,
			opts:       lib.RunTaskOpts{Prompt: "more", Continue: true},
			expProfile: "default",
			expStdout:  "exec resume --last --skip-git-repo-check --dangerously-bypass-approvals-and-sandbox more\n",
			expSuccess: true,
		},

		"Configured env should reach the task.": {
			script:     `echo "$SDK_TEST"`,
			opts:       lib.RunTaskOpts{Prompt: "env"},
			expProfile: "default",
			expStdout:  "yes\n",
			expSuccess: true,
		},

		"A failing task should be a result, not an error.": {
			script:     `echo boom >&2; exit 3`,
			opts:       lib.RunTaskOpts{Prompt: "fail"},
			expProfile: "default",
			expSuccess: false,
		},

		"An unknown profile should fail.": {
			script: `echo "$*"`,
			opts:   lib.RunTaskOpts{Prompt: "hello", Profile: "nonexistent"},
			expErr: lib.ErrUnknownProfile,
		},

		"An empty prompt should fail.": {
			script: `echo "$*"`,
			opts:   lib.RunTaskOpts{Prompt: " "},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client, _ := newTestClient(t, test.script)

			res, err := client.RunTask(context.Background(), test.opts)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)

			assert.NotEmpty(res.RunID)
			assert.Equal(test.expProfile, res.Profile.ID)
			assert.Equal(test.expSuccess, res.Success())
			if test.expStdout != "" {
				assert.Equal(test.expStdout, res.Stdout)
			}
		})
	}
}

func TestRunTaskTimeout(t *testing.T) {
	assert := assert.New(t)
	client, _ := newTestClient(t, `exec sleep 10`)

	start := time.Now()
	res, err := client.RunTask(context.Background(), lib.RunTaskOpts{Prompt: "slow", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	assert.True(res.TimedOut)
	assert.Nil(res.ExitCode)
	assert.False(res.Success())
	assert.Less(time.Since(start), 5*time.Second)
}

func TestRunTaskConcurrentCallsDontOverlap(t *testing.T) {
	assert := assert.New(t)
	// The lock dir lives in the workdir, a second task running at the same
	// time fails to create it.
	client, _ := newTestClient(t, `mkdir .running || { echo overlap; exit 1; }; sleep 0.2; rmdir .running; echo done`)

	var wg sync.WaitGroup
	results := make([]*lib.TaskResult, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = client.RunTask(context.Background(), lib.RunTaskOpts{Prompt: "work"})
		}()
	}
	wg.Wait()

	for i, res := range results {
		require.NoError(t, errs[i])
		assert.True(res.Success(), res.Stdout)
		assert.Equal("done\n", res.Stdout)
	}
}

func TestNewDefaultsToHomeDirs(t *testing.T) {
	assert := assert.New(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	client, err := lib.New(context.Background(), lib.Config{ToolBinary: "true"})
	require.NoError(t, err)

	_, err = client.WriteFile(context.Background(), "a.txt", "x")
	require.NoError(t, err)
	assert.FileExists(filepath.Join(home, "agentgw-workspace", "a.txt"))

	_, err = client.Profiles(context.Background())
	require.NoError(t, err)
	assert.FileExists(filepath.Join(home, ".agentgw", "home", "config.toml"))
}

func TestResumeTask(t *testing.T) {
	assert := assert.New(t)
	client, cfg := newTestClient(t, `echo "home=$CODEX_HOME args=$*"`)

	res, err := client.ResumeTask(context.Background(), "go on", "secure")
	require.NoError(t, err)

	assert.Equal("security", res.Profile.ID)
	assert.True(res.Profile.Isolated)
	assert.Contains(res.Stdout, "home="+filepath.Join(cfg.DataDir, "home-isolated"))
	assert.Contains(res.Stdout, "args=exec resume --last --skip-git-repo-check")
}

func TestProfiles(t *testing.T) {
	assert := assert.New(t)
	client, cfg := newTestClient(t, `true`)

	profiles, err := client.Profiles(context.Background())
	require.NoError(t, err)

	assert.Equal(lib.ProfileSourceFallback, profiles.Source)
	assert.Equal("default", profiles.Default)
	assert.Len(profiles.Profiles, 5)
	assert.FileExists(filepath.Join(cfg.DataDir, "home", "config.toml"))
}

func TestFiles(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client, cfg := newTestClient(t, `true`)

	n, err := client.WriteFile(ctx, "a/b.txt", "hello")
	require.NoError(t, err)
	assert.Equal(5, n)

	content, err := client.ReadFile(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal("hello", content)

	entries, err := client.ListFiles(ctx, "a")
	require.NoError(t, err)
	assert.Equal([]lib.DirEntry{{Name: "b.txt"}}, entries)

	_, err = client.ReadFile(ctx, "missing.txt")
	assert.ErrorIs(err, lib.ErrNotFound)

	_, err = client.WriteFile(ctx, "../escape.txt", "x")
	assert.ErrorIs(err, lib.ErrOutOfBounds)
	assert.NoFileExists(filepath.Join(filepath.Dir(cfg.Workdir), "escape.txt"))
}

func TestDoctor(t *testing.T) {
	assert := assert.New(t)
	client, _ := newTestClient(t, `true`)

	results, err := client.Doctor(context.Background())
	require.NoError(t, err)

	got := map[string]lib.CheckStatus{}
	for _, r := range results {
		got[r.ID] = r.Status
	}
	assert.Equal(map[string]lib.CheckStatus{
		"tool_binary": lib.CheckStatusOK,
		"catalog":     lib.CheckStatusWarning,
		"data_dir":    lib.CheckStatusOK,
		"workspace":   lib.CheckStatusOK,
	}, got)
}

func TestServe(t *testing.T) {
	assert := assert.New(t)
	client, _ := newTestClient(t, `true`)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, client.Serve(context.Background(), in, &out))

	assert.JSONEq(`{"jsonrpc":"2.0","id":1,"result":{}}`, out.String())
}
