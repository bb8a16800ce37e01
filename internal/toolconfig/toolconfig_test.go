package toolconfig_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/toolconfig"
)

type toolsConfig struct {
	WebSearch bool `toml:"web_search"`
	ViewImage bool `toml:"view_image"`
}

type profileConfig struct {
	Model                string      `toml:"model"`
	ModelProvider        string      `toml:"model_provider"`
	ApprovalPolicy       string      `toml:"approval_policy"`
	SandboxMode          string      `toml:"sandbox_mode"`
	ModelReasoningEffort string      `toml:"model_reasoning_effort"`
	ModelMaxOutputTokens int         `toml:"model_max_output_tokens"`
	Tools                toolsConfig `toml:"tools"`
}

type providerConfig struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	EnvKey  string `toml:"env_key"`
}

type shellEnvConfig struct {
	Inherit string   `toml:"inherit"`
	Exclude []string `toml:"exclude"`
}

type historyConfig struct {
	Persistence string `toml:"persistence"`
}

type projectConfig struct {
	TrustLevel string `toml:"trust_level"`
}

type toolConfig struct {
	DefaultProfile         string                    `toml:"default_profile"`
	Profiles               map[string]profileConfig  `toml:"profiles"`
	ModelProviders         map[string]providerConfig `toml:"model_providers"`
	ShellEnvironmentPolicy shellEnvConfig            `toml:"shell_environment_policy"`
	History                historyConfig             `toml:"history"`
	Projects               map[string]projectConfig  `toml:"projects"`
}

func decode(t *testing.T, data []byte) toolConfig {
	t.Helper()
	var cfg toolConfig
	require.NoError(t, toml.Unmarshal(data, &cfg))
	return cfg
}

func testSet() *model.ProfileSet {
	set := model.NewProfileSet(model.ProvenanceExternal,
		model.Profile{ID: "default", Name: "Default", Model: "gpt-5"},
		model.Profile{ID: "o4-mini", Name: "o4-mini", Model: "o4-mini"},
		model.Profile{ID: "security", Name: "Security Review", Model: "gpt-5", Isolated: true},
	)
	set.Default = "default"
	return set
}

var localProvider = &model.ProviderConfig{ID: "local", Name: "Local", BaseURL: "http://localhost:11434/v1", EnvKey: "LOCAL_API_KEY"}

func TestRender(t *testing.T) {
	assert := assert.New(t)

	data, err := toolconfig.Render(testSet(), toolconfig.Options{
		Workspace: "/srv/agentgw workspace",
		Policies: model.PolicySet{
			Profiles: map[string]model.Policy{
				"o4-mini": {SandboxMode: model.SandboxModeDangerFullAccess, Provider: localProvider},
			},
		},
	})
	require.NoError(t, err)
	cfg := decode(t, data)

	assert.Equal("default", cfg.DefaultProfile)
	assert.Len(cfg.Profiles, 2)
	assert.NotContains(cfg.Profiles, "security")

	assert.Equal(profileConfig{
		Model:                "gpt-5",
		ApprovalPolicy:       "never",
		SandboxMode:          "workspace-write",
		ModelReasoningEffort: "high",
		ModelMaxOutputTokens: 32000,
		Tools:                toolsConfig{WebSearch: true, ViewImage: true},
	}, cfg.Profiles["default"])

	mini := cfg.Profiles["o4-mini"]
	assert.Equal("local", mini.ModelProvider)
	assert.Equal("danger-full-access", mini.SandboxMode)
	assert.Equal("never", mini.ApprovalPolicy)
	assert.Equal(providerConfig{Name: "Local", BaseURL: "http://localhost:11434/v1", EnvKey: "LOCAL_API_KEY"}, cfg.ModelProviders["local"])

	assert.Equal("all", cfg.ShellEnvironmentPolicy.Inherit)
	assert.Equal([]string{"*KEY*", "*SECRET*", "*TOKEN*", "*PASSWORD*", "*CREDENTIAL*"}, cfg.ShellEnvironmentPolicy.Exclude)
	assert.Equal("save-all", cfg.History.Persistence)
	assert.Equal("trusted", cfg.Projects["/srv/agentgw workspace"].TrustLevel)
}

func TestRenderWithoutDefault(t *testing.T) {
	set := model.NewProfileSet(model.ProvenanceExternal,
		model.Profile{ID: "security", Model: "gpt-5", Isolated: true},
	)
	set.Default = "security"

	data, err := toolconfig.Render(set, toolconfig.Options{})
	require.NoError(t, err)
	cfg := decode(t, data)

	// The isolated profile is not in the main file so it can't be the default there.
	assert.Empty(t, cfg.DefaultProfile)
	assert.Empty(t, cfg.Profiles)
}

func TestRenderIsolated(t *testing.T) {
	tests := map[string]struct {
		policies model.PolicySet
	}{
		"Without overrides the isolated profile should be restricted.": {
			policies: model.PolicySet{},
		},

		"A relaxing default should not apply to the isolated profile.": {
			policies: model.PolicySet{
				Default: model.Policy{ApprovalPolicy: model.ApprovalPolicyNever, SandboxMode: model.SandboxModeDangerFullAccess},
			},
		},

		"A relaxing isolated override should not apply to the isolated profile.": {
			policies: model.PolicySet{
				Profiles: map[string]model.Policy{
					"security": {ApprovalPolicy: model.ApprovalPolicyNever, SandboxMode: model.SandboxModeDangerFullAccess},
				},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			data, ok, err := toolconfig.RenderIsolated(testSet(), toolconfig.Options{Policies: test.policies})
			require.NoError(t, err)
			require.True(t, ok)
			cfg := decode(t, data)

			require.Len(t, cfg.Profiles, 1)
			sec := cfg.Profiles["security"]
			assert.Equal("untrusted", sec.ApprovalPolicy)
			assert.Equal("workspace-write", sec.SandboxMode)
			assert.Equal("gpt-5", sec.Model)
			assert.Empty(cfg.DefaultProfile)
		})
	}
}

func TestRenderIsolatedMissing(t *testing.T) {
	set := model.NewProfileSet(model.ProvenanceFallback, model.Profile{ID: "default", Model: "gpt-5"})

	data, ok, err := toolconfig.RenderIsolated(set, toolconfig.Options{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestRenderIsDeterministic(t *testing.T) {
	opts := toolconfig.Options{
		Workspace: "/ws",
		Policies: model.PolicySet{Profiles: map[string]model.Policy{
			"default": {Provider: localProvider},
			"o4-mini": {Provider: &model.ProviderConfig{ID: "other", Name: "Other", BaseURL: "http://other"}},
		}},
	}

	first, err := toolconfig.Render(testSet(), opts)
	require.NoError(t, err)
	for range 10 {
		again, err := toolconfig.Render(testSet(), opts)
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestSynthesizerSync(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	mainHome := filepath.Join(dir, "home")
	isolatedHome := filepath.Join(dir, "home-isolated")

	syn, err := toolconfig.NewSynthesizer(toolconfig.SynthesizerConfig{
		MainHome:     mainHome,
		IsolatedHome: isolatedHome,
		Workspace:    "/ws",
	})
	require.NoError(t, err)

	// First sync creates the homes and both files.
	require.NoError(t, syn.Sync(ctx, testSet()))
	mainPath := filepath.Join(mainHome, "config.toml")
	isolatedPath := filepath.Join(isolatedHome, "config.toml")
	mainData, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	isolatedData, err := os.ReadFile(isolatedPath)
	require.NoError(t, err)

	// Backdate so a rewrite would be noticed.
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(mainPath, old, old))
	require.NoError(t, os.Chtimes(isolatedPath, old, old))

	// Second sync with the same state is a no-op.
	require.NoError(t, syn.Sync(ctx, testSet()))
	for path, exp := range map[string][]byte{mainPath: mainData, isolatedPath: isolatedData} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(old.Equal(info.ModTime()), "%s should not be rewritten", path)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(exp, got)
	}

	// A set without isolated profile leaves the isolated file untouched.
	noIsolated := model.NewProfileSet(model.ProvenanceExternal, model.Profile{ID: "default", Model: "o3"})
	noIsolated.Default = "default"
	require.NoError(t, syn.Sync(ctx, noIsolated))

	info, err := os.Stat(isolatedPath)
	require.NoError(t, err)
	assert.True(old.Equal(info.ModTime()))

	got, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Equal("o3", decode(t, got).Profiles["default"].Model)
}

func TestNewSynthesizerValidation(t *testing.T) {
	tests := map[string]struct {
		cfg toolconfig.SynthesizerConfig
	}{
		"Missing main home should fail.":     {cfg: toolconfig.SynthesizerConfig{IsolatedHome: "/b"}},
		"Missing isolated home should fail.": {cfg: toolconfig.SynthesizerConfig{MainHome: "/a"}},
		"Shared homes should fail.":          {cfg: toolconfig.SynthesizerConfig{MainHome: "/a", IsolatedHome: "/a"}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := toolconfig.NewSynthesizer(test.cfg)
			assert.Error(t, err)
		})
	}
}
