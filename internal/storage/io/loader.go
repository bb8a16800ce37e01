package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/agentgw/internal/model"
)

// PolicyYAMLRepository loads the profile execution policies from YAML files.
type PolicyYAMLRepository struct {
	fs fs.FS
}

// NewPolicyYAMLRepository creates a new YAML policy repository.
func NewPolicyYAMLRepository(filesystem fs.FS) *PolicyYAMLRepository {
	return &PolicyYAMLRepository{fs: filesystem}
}

// GetPolicies loads the policies from a YAML file and returns a validated domain model.
// Profile keys are returned as written, alias normalization is up to the caller.
func (r *PolicyYAMLRepository) GetPolicies(ctx context.Context, path string) (model.PolicySet, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.PolicySet{}, fmt.Errorf("reading policy file: %w", err)
	}

	if ctx.Err() != nil {
		return model.PolicySet{}, ctx.Err()
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.PolicySet{}, fmt.Errorf("parsing YAML: %w", err)
	}

	ps, err := cfg.toModel()
	if err != nil {
		return model.PolicySet{}, fmt.Errorf("invalid policy configuration: %w", err)
	}

	return ps, nil
}

// PolicyConfig represents the YAML structure of the policy file.
type PolicyConfig struct {
	Default   PolicyEntry               `yaml:"default"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Profiles  map[string]PolicyEntry    `yaml:"profiles"`
}

// PolicyEntry represents the YAML structure of a single profile policy.
type PolicyEntry struct {
	ApprovalPolicy string `yaml:"approval_policy"`
	SandboxMode    string `yaml:"sandbox_mode"`
	Provider       string `yaml:"provider"`
}

// ProviderConfig represents the YAML structure of a model provider.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	EnvKey  string `yaml:"env_key"`
	WireAPI string `yaml:"wire_api"`
}

func (c PolicyConfig) toModel() (model.PolicySet, error) {
	providers := make(map[string]*model.ProviderConfig, len(c.Providers))
	for id, p := range c.Providers {
		if p.BaseURL == "" {
			return model.PolicySet{}, fmt.Errorf("provider %q base_url is required", id)
		}
		name := p.Name
		if name == "" {
			name = id
		}
		providers[id] = &model.ProviderConfig{
			ID:      id,
			Name:    name,
			BaseURL: p.BaseURL,
			EnvKey:  p.EnvKey,
			WireAPI: p.WireAPI,
		}
	}

	def, err := c.Default.toModel(providers)
	if err != nil {
		return model.PolicySet{}, fmt.Errorf("default: %w", err)
	}

	ps := model.PolicySet{
		Default:  def,
		Profiles: make(map[string]model.Policy, len(c.Profiles)),
	}
	for id, e := range c.Profiles {
		pol, err := e.toModel(providers)
		if err != nil {
			return model.PolicySet{}, fmt.Errorf("profile %q: %w", id, err)
		}
		ps.Profiles[id] = pol
	}

	return ps, nil
}

func (e PolicyEntry) toModel(providers map[string]*model.ProviderConfig) (model.Policy, error) {
	pol := model.Policy{
		ApprovalPolicy: model.ApprovalPolicy(e.ApprovalPolicy),
		SandboxMode:    model.SandboxMode(e.SandboxMode),
	}

	if e.Provider != "" {
		p, ok := providers[e.Provider]
		if !ok {
			return model.Policy{}, fmt.Errorf("unknown provider %q: %w", e.Provider, model.ErrNotValid)
		}
		pol.Provider = p
	}

	// Empty modes are inherited, only validate what is set.
	check := pol
	if check.ApprovalPolicy == "" {
		check.ApprovalPolicy = model.DefaultPolicy.ApprovalPolicy
	}
	if check.SandboxMode == "" {
		check.SandboxMode = model.DefaultPolicy.SandboxMode
	}
	if err := check.Validate(); err != nil {
		return model.Policy{}, err
	}

	return pol, nil
}
