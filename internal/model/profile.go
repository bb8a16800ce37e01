package model

import (
	"fmt"
	"slices"
)

// Provenance tells where the profile data of a snapshot came from.
type Provenance string

const (
	// ProvenanceExternal means the profiles were obtained from the catalog data source.
	ProvenanceExternal Provenance = "external"
	// ProvenanceFallback means the catalog was unavailable and the static profiles were used.
	ProvenanceFallback Provenance = "fallback"
)

const (
	// DefaultProfileID is the identifier of the synthesized default profile.
	DefaultProfileID = "default"
	// IsolatedProfileID is the reserved identifier of the isolated profile.
	IsolatedProfileID = "security"
)

// ProfileRow is a raw profile entry as returned by a profile data source.
type ProfileRow struct {
	ID        string
	Name      string
	BaseModel string
}

// Profile is a named execution configuration for the wrapped tool.
type Profile struct {
	ID    string
	Name  string
	Model string
	// Isolated profiles run in their own execution home with the most
	// restrictive approval and sandbox settings.
	Isolated bool
}

// ProfileSet is an immutable snapshot of the known profiles.
type ProfileSet struct {
	profiles map[string]Profile
	order    []string

	// Default is the default profile ID, empty when there are no profiles.
	Default string
	// Source tells where the data of this set came from.
	Source Provenance
}

// NewProfileSet returns a profile set with the profiles in the received order.
// Profiles with a repeated ID overwrite the previous one keeping its position.
func NewProfileSet(source Provenance, profiles ...Profile) *ProfileSet {
	s := &ProfileSet{
		profiles: make(map[string]Profile, len(profiles)),
		Source:   source,
	}
	for _, p := range profiles {
		s.put(p)
	}
	return s
}

func (s *ProfileSet) put(p Profile) {
	if _, ok := s.profiles[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.profiles[p.ID] = p
}

// Get returns a profile by its canonical ID.
func (s *ProfileSet) Get(id string) (Profile, bool) {
	if s == nil {
		return Profile{}, false
	}
	p, ok := s.profiles[id]
	return p, ok
}

// List returns the profiles in insertion order.
func (s *ProfileSet) List() []Profile {
	if s == nil {
		return nil
	}
	ps := make([]Profile, 0, len(s.order))
	for _, id := range s.order {
		ps = append(ps, s.profiles[id])
	}
	return ps
}

// Len returns the number of profiles.
func (s *ProfileSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Isolated returns the isolated profile if the set has one.
func (s *ProfileSet) Isolated() (Profile, bool) {
	for _, p := range s.List() {
		if p.Isolated {
			return p, true
		}
	}
	return Profile{}, false
}

// IDs returns the profile IDs in insertion order.
func (s *ProfileSet) IDs() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// ApprovalPolicy is the wrapped tool approval mode.
type ApprovalPolicy string

const (
	ApprovalPolicyUntrusted ApprovalPolicy = "untrusted"
	ApprovalPolicyOnFailure ApprovalPolicy = "on-failure"
	ApprovalPolicyOnRequest ApprovalPolicy = "on-request"
	ApprovalPolicyNever     ApprovalPolicy = "never"
)

// SandboxMode is the wrapped tool sandbox mode.
type SandboxMode string

const (
	SandboxModeReadOnly         SandboxMode = "read-only"
	SandboxModeWorkspaceWrite   SandboxMode = "workspace-write"
	SandboxModeDangerFullAccess SandboxMode = "danger-full-access"
)

// ProviderConfig is a model provider definition for the wrapped tool.
type ProviderConfig struct {
	ID      string
	Name    string
	BaseURL string
	EnvKey  string
	WireAPI string
}

// Policy is the per profile execution policy rendered into the tool configuration.
type Policy struct {
	ApprovalPolicy ApprovalPolicy
	SandboxMode    SandboxMode
	// Provider is optional, nil means the tool default provider.
	Provider *ProviderConfig
}

// DefaultPolicy is the policy used by profiles without overrides.
var DefaultPolicy = Policy{
	ApprovalPolicy: ApprovalPolicyNever,
	SandboxMode:    SandboxModeWorkspaceWrite,
}

// IsolatedPolicy is the policy the isolated profile always runs with.
var IsolatedPolicy = Policy{
	ApprovalPolicy: ApprovalPolicyUntrusted,
	SandboxMode:    SandboxModeWorkspaceWrite,
}

// Validate validates the policy.
func (p Policy) Validate() error {
	switch p.ApprovalPolicy {
	case ApprovalPolicyUntrusted, ApprovalPolicyOnFailure, ApprovalPolicyOnRequest, ApprovalPolicyNever:
	default:
		return fmt.Errorf("unknown approval policy %q: %w", p.ApprovalPolicy, ErrNotValid)
	}

	switch p.SandboxMode {
	case SandboxModeReadOnly, SandboxModeWorkspaceWrite, SandboxModeDangerFullAccess:
	default:
		return fmt.Errorf("unknown sandbox mode %q: %w", p.SandboxMode, ErrNotValid)
	}

	if p.Provider != nil && p.Provider.ID == "" {
		return fmt.Errorf("provider id is required: %w", ErrNotValid)
	}

	return nil
}

// PolicySet holds the default policy and the per profile overrides.
type PolicySet struct {
	Default  Policy
	Profiles map[string]Policy
}

// For returns the effective policy of a profile. Isolated profiles always
// get the isolated approval and sandbox modes, only the provider can be
// overridden for them.
func (p PolicySet) For(profile Profile) Policy {
	pol := p.Profiles[profile.ID]
	if pol.ApprovalPolicy == "" {
		pol.ApprovalPolicy = p.Default.ApprovalPolicy
	}
	if pol.SandboxMode == "" {
		pol.SandboxMode = p.Default.SandboxMode
	}
	if pol.Provider == nil {
		pol.Provider = p.Default.Provider
	}
	if pol.ApprovalPolicy == "" {
		pol.ApprovalPolicy = DefaultPolicy.ApprovalPolicy
	}
	if pol.SandboxMode == "" {
		pol.SandboxMode = DefaultPolicy.SandboxMode
	}

	if profile.Isolated {
		pol.ApprovalPolicy = IsolatedPolicy.ApprovalPolicy
		pol.SandboxMode = IsolatedPolicy.SandboxMode
	}

	return pol
}
