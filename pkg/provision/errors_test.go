package provision

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	err := ErrNotFound("application", "proj-Dev").WithOperation("bind-credential")

	assert.True(t, IsCategory(err, ErrCategoryNotFound))
	assert.False(t, IsCategory(err, ErrCategoryConflict))
	assert.False(t, IsRecoverable(err))

	assert.True(t, IsRecoverable(ErrAlreadyExists("service principal", "app-1")))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("socket closed")
	err := ErrProvision("graph request failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCategory(fmt.Errorf("run failed: %w", err), ErrCategoryProvision),
		"category survives further wrapping")
}

func TestEnvironmentConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EnvironmentConfig
		wantErr bool
	}{
		{"minimal", EnvironmentConfig{Name: "Dev"}, false},
		{"max wait timer", EnvironmentConfig{Name: "Dev", WaitTimer: MaxWaitTimerMinutes}, false},
		{"missing name", EnvironmentConfig{}, true},
		{"negative wait timer", EnvironmentConfig{Name: "Dev", WaitTimer: -1}, true},
		{"wait timer too large", EnvironmentConfig{Name: "Dev", WaitTimer: MaxWaitTimerMinutes + 1}, true},
		{"valid reviewer", EnvironmentConfig{Name: "Dev", Reviewers: []Reviewer{{Type: "User", ID: 1}}}, false},
		{"bad reviewer type", EnvironmentConfig{Name: "Dev", Reviewers: []Reviewer{{Type: "Robot", ID: 1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, IsCategory(err, ErrCategoryValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
