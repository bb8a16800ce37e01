package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/agentgw/internal/model"
)

func TestProfileSetOrder(t *testing.T) {
	assert := assert.New(t)

	set := model.NewProfileSet(model.ProvenanceExternal,
		model.Profile{ID: "b", Model: "m1"},
		model.Profile{ID: "a", Model: "m2"},
		model.Profile{ID: "b", Model: "m3"},
	)

	assert.Equal([]string{"b", "a"}, set.IDs())
	assert.Equal(2, set.Len())

	got, ok := set.Get("b")
	assert.True(ok)
	assert.Equal("m3", got.Model)

	_, ok = set.Get("missing")
	assert.False(ok)

	_, ok = set.Isolated()
	assert.False(ok)
}

func TestNilProfileSet(t *testing.T) {
	assert := assert.New(t)

	var set *model.ProfileSet
	assert.Equal(0, set.Len())
	assert.Nil(set.List())
	_, ok := set.Get("x")
	assert.False(ok)
}

func TestPolicySetFor(t *testing.T) {
	local := &model.ProviderConfig{ID: "local", Name: "Local"}

	tests := map[string]struct {
		policies  model.PolicySet
		profile   model.Profile
		expPolicy model.Policy
	}{
		"Without any policy the builtin default should be used.": {
			profile:   model.Profile{ID: "gpt-5"},
			expPolicy: model.DefaultPolicy,
		},

		"The configured default should be used for profiles without overrides.": {
			policies: model.PolicySet{
				Default: model.Policy{SandboxMode: model.SandboxModeReadOnly},
			},
			profile: model.Profile{ID: "gpt-5"},
			expPolicy: model.Policy{
				ApprovalPolicy: model.ApprovalPolicyNever,
				SandboxMode:    model.SandboxModeReadOnly,
			},
		},

		"Profile overrides should win over the default.": {
			policies: model.PolicySet{
				Default: model.Policy{SandboxMode: model.SandboxModeReadOnly},
				Profiles: map[string]model.Policy{
					"o4-mini": {SandboxMode: model.SandboxModeDangerFullAccess, Provider: local},
				},
			},
			profile: model.Profile{ID: "o4-mini"},
			expPolicy: model.Policy{
				ApprovalPolicy: model.ApprovalPolicyNever,
				SandboxMode:    model.SandboxModeDangerFullAccess,
				Provider:       local,
			},
		},

		"The isolated profile should never be relaxed by overrides.": {
			policies: model.PolicySet{
				Default: model.Policy{ApprovalPolicy: model.ApprovalPolicyNever},
				Profiles: map[string]model.Policy{
					"security": {
						ApprovalPolicy: model.ApprovalPolicyNever,
						SandboxMode:    model.SandboxModeDangerFullAccess,
						Provider:       local,
					},
				},
			},
			profile: model.Profile{ID: "security", Isolated: true},
			expPolicy: model.Policy{
				ApprovalPolicy: model.ApprovalPolicyUntrusted,
				SandboxMode:    model.SandboxModeWorkspaceWrite,
				Provider:       local,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPolicy, test.policies.For(test.profile))
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := map[string]struct {
		policy model.Policy
		expErr bool
	}{
		"A valid policy should not fail.": {
			policy: model.DefaultPolicy,
		},

		"An unknown approval policy should fail.": {
			policy: model.Policy{ApprovalPolicy: "sometimes", SandboxMode: model.SandboxModeReadOnly},
			expErr: true,
		},

		"An unknown sandbox mode should fail.": {
			policy: model.Policy{ApprovalPolicy: model.ApprovalPolicyNever, SandboxMode: "yolo"},
			expErr: true,
		},

		"A provider without ID should fail.": {
			policy: model.Policy{
				ApprovalPolicy: model.ApprovalPolicyNever,
				SandboxMode:    model.SandboxModeReadOnly,
				Provider:       &model.ProviderConfig{Name: "x"},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.policy.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessOutcomeSuccess(t *testing.T) {
	assert := assert.New(t)

	assert.True(model.ProcessOutcome{ExitCode: model.IntPtr(0)}.Success())
	assert.False(model.ProcessOutcome{ExitCode: model.IntPtr(2)}.Success())
	assert.False(model.ProcessOutcome{TimedOut: true}.Success())
}
