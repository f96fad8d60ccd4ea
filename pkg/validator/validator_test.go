package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createScanInput struct {
	ProjectName string `validate:"required,min=1,max=200"`
	GitURL      string `validate:"required,url"`
}

type findingInput struct {
	Severity   string `validate:"omitempty,severity"`
	Status     string `validate:"omitempty,scan_status"`
	Likelihood string `validate:"omitempty,fp_likelihood"`
	Verdict    string `validate:"omitempty,fp_verdict"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	err := v.Validate(createScanInput{
		ProjectName: "my project",
		GitURL:      "https://github.com/acme/app",
	})
	assert.NoError(t, err)
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	v := New()

	err := v.Validate(createScanInput{GitURL: "not a url"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 2)

	assert.Equal(t, "project_name", verrs[0].Field)
	assert.Equal(t, "is required", verrs[0].Message)
	assert.Equal(t, "git_url", verrs[1].Field)
	assert.Equal(t, "must be a valid URL", verrs[1].Message)

	assert.Contains(t, verrs.Error(), "project_name: is required")
}

func TestCustomValidators(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(findingInput{
		Severity:   "critical",
		Status:     "enriching",
		Likelihood: "possible_fp",
		Verdict:    "not_fp",
	}))

	// Empty values pass; required is a separate concern.
	assert.NoError(t, v.Validate(findingInput{}))

	tests := []struct {
		name  string
		input findingInput
	}{
		{"bad severity", findingInput{Severity: "catastrophic"}},
		{"bad status", findingInput{Status: "paused"}},
		{"bad likelihood", findingInput{Likelihood: "definitely"}},
		{"bad verdict", findingInput{Verdict: "maybe_fp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.Validate(tt.input))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "project_name", toSnakeCase("ProjectName"))
	assert.Equal(t, "git_u_r_l", toSnakeCase("GitURL"))
	assert.Equal(t, "note", toSnakeCase("Note"))
}
