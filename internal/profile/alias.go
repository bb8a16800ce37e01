// Package profile resolves the execution profiles of the wrapped tool.
package profile

import (
	"maps"
	"slices"
	"strings"

	"github.com/slok/agentgw/internal/model"
)

// aliases maps convenience names to canonical profile IDs. Targets are never
// aliases themselves so resolution is idempotent.
var aliases = map[string]string{
	"fast":  "o4-mini",
	"smart": "gpt-5",
	"codex": "gpt-5-codex",
	"mini":  "o4-mini",
}

// restrictedIDs are the original row IDs that populate the isolated profile.
var restrictedIDs = map[string]struct{}{
	model.IsolatedProfileID: {},
	"security-review":       {},
	"secure":                {},
}

// isolationMarker in a base model triggers a synthetic isolated profile.
const isolationMarker = "security"

// ResolveAlias returns the canonical ID of a profile name.
func ResolveAlias(name string) string {
	name = strings.TrimSpace(name)
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// IsRestricted returns true when the ID is reserved to the isolated profile.
func IsRestricted(id string) bool {
	_, ok := restrictedIDs[strings.TrimSpace(id)]
	return ok
}

// FallbackRows are used when the catalog is unavailable.
func FallbackRows() []model.ProfileRow {
	return []model.ProfileRow{
		{ID: "gpt-5", Name: "GPT-5", BaseModel: "gpt-5"},
		{ID: "gpt-5-codex", Name: "GPT-5 Codex", BaseModel: "gpt-5-codex"},
		{ID: "o4-mini", Name: "o4-mini", BaseModel: "o4-mini"},
		{ID: model.IsolatedProfileID, Name: "Security Review", BaseModel: "gpt-5"},
	}
}

var defaultRow = model.ProfileRow{ID: model.DefaultProfileID, Name: "Default", BaseModel: "gpt-5"}

// NormalizePolicies returns a policy set with the profile keys alias resolved.
// Restricted keys are mapped to the isolated profile. When several keys land
// on the same profile the canonical key wins, otherwise the first alias in
// lexical order does.
func NormalizePolicies(ps model.PolicySet) model.PolicySet {
	out := model.PolicySet{
		Default:  ps.Default,
		Profiles: make(map[string]model.Policy, len(ps.Profiles)),
	}
	for _, id := range slices.Sorted(maps.Keys(ps.Profiles)) {
		key := ResolveAlias(id)
		if IsRestricted(id) {
			key = model.IsolatedProfileID
		}

		_, taken := out.Profiles[key]
		if taken && strings.TrimSpace(id) != key {
			continue
		}
		out.Profiles[key] = ps.Profiles[id]
	}
	return out
}
