// Package toolconfig renders and writes the wrapped tool configuration files
// of the execution homes.
package toolconfig

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/slok/agentgw/internal/model"
)

const (
	reasoningEffort = "high"
	maxOutputTokens = 32000
	trustLevel      = "trusted"
	historySaveAll  = "save-all"
	header          = "# Generated by agentgw, manual changes will be overwritten.\n\n"
)

var secretEnvPatterns = []string{"*KEY*", "*SECRET*", "*TOKEN*", "*PASSWORD*", "*CREDENTIAL*"}

// Options are the static inputs of the rendering.
type Options struct {
	// Policies are the per profile execution policies, keys must be canonical IDs.
	Policies model.PolicySet
	// Workspace is the directory trusted by the wrapped tool.
	Workspace string
}

type document struct {
	DefaultProfile         string                   `toml:"default_profile,omitempty"`
	Profiles               map[string]profileBlock  `toml:"profiles"`
	ModelProviders         map[string]providerBlock `toml:"model_providers,omitempty"`
	ShellEnvironmentPolicy shellEnvPolicy           `toml:"shell_environment_policy"`
	History                history                  `toml:"history"`
	Projects               map[string]project       `toml:"projects,omitempty"`
}

type profileBlock struct {
	Model                string     `toml:"model"`
	ModelProvider        string     `toml:"model_provider,omitempty"`
	ApprovalPolicy       string     `toml:"approval_policy"`
	SandboxMode          string     `toml:"sandbox_mode"`
	ModelReasoningEffort string     `toml:"model_reasoning_effort"`
	ModelMaxOutputTokens int        `toml:"model_max_output_tokens"`
	Tools                toolsBlock `toml:"tools"`
}

type toolsBlock struct {
	WebSearch bool `toml:"web_search"`
	ViewImage bool `toml:"view_image"`
}

type providerBlock struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	EnvKey  string `toml:"env_key,omitempty"`
	WireAPI string `toml:"wire_api,omitempty"`
}

type shellEnvPolicy struct {
	Inherit               string   `toml:"inherit"`
	IgnoreDefaultExcludes bool     `toml:"ignore_default_excludes"`
	Exclude               []string `toml:"exclude"`
}

type history struct {
	Persistence string `toml:"persistence"`
}

type project struct {
	TrustLevel string `toml:"trust_level"`
}

// Render renders the main configuration with one block per non isolated profile.
func Render(set *model.ProfileSet, opts Options) ([]byte, error) {
	doc := newDocument(opts)
	for _, p := range set.List() {
		if p.Isolated {
			continue
		}
		addProfile(&doc, p, opts.Policies.For(p))
	}

	if _, ok := doc.Profiles[set.Default]; ok {
		doc.DefaultProfile = set.Default
	}

	return marshal(doc)
}

// RenderIsolated renders the isolated configuration with only the isolated
// profile block. Returns false when the set has no isolated profile.
func RenderIsolated(set *model.ProfileSet, opts Options) ([]byte, bool, error) {
	p, ok := set.Isolated()
	if !ok {
		return nil, false, nil
	}

	// Policy.For already enforces the isolated modes, force them again so no
	// policy source can relax them.
	pol := opts.Policies.For(p)
	pol.ApprovalPolicy = model.IsolatedPolicy.ApprovalPolicy
	pol.SandboxMode = model.IsolatedPolicy.SandboxMode

	doc := newDocument(opts)
	addProfile(&doc, p, pol)

	data, err := marshal(doc)
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

func newDocument(opts Options) document {
	doc := document{
		Profiles: map[string]profileBlock{},
		ShellEnvironmentPolicy: shellEnvPolicy{
			Inherit: "all",
			Exclude: append([]string{}, secretEnvPatterns...),
		},
		History: history{Persistence: historySaveAll},
	}
	if opts.Workspace != "" {
		doc.Projects = map[string]project{opts.Workspace: {TrustLevel: trustLevel}}
	}
	return doc
}

func addProfile(doc *document, p model.Profile, pol model.Policy) {
	block := profileBlock{
		Model:                p.Model,
		ApprovalPolicy:       string(pol.ApprovalPolicy),
		SandboxMode:          string(pol.SandboxMode),
		ModelReasoningEffort: reasoningEffort,
		ModelMaxOutputTokens: maxOutputTokens,
		Tools:                toolsBlock{WebSearch: true, ViewImage: true},
	}

	if pv := pol.Provider; pv != nil {
		block.ModelProvider = pv.ID
		if doc.ModelProviders == nil {
			doc.ModelProviders = map[string]providerBlock{}
		}
		doc.ModelProviders[pv.ID] = providerBlock{
			Name:    pv.Name,
			BaseURL: pv.BaseURL,
			EnvKey:  pv.EnvKey,
			WireAPI: pv.WireAPI,
		}
	}

	doc.Profiles[p.ID] = block
}

func marshal(doc document) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(header)

	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("could not encode tool configuration: %w", err)
	}

	return b.Bytes(), nil
}
