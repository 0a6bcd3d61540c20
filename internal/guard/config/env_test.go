package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_AllKeys(t *testing.T) {
	t.Setenv("LOOPGUARD_THRESHOLD", "250000")
	t.Setenv("LOOPGUARD_WARN_ONCE", "false")
	t.Setenv("LOOPGUARD_STACK_TRACE", "false")
	t.Setenv("LOOPGUARD_BREAK_ON_OVERFLOW", "true")

	c := New()
	require.NoError(t, c.LoadEnv())

	assert.Equal(t, uint64(250000), c.Threshold())
	assert.False(t, c.WarnOnce())
	assert.False(t, c.StackTrace())
	assert.True(t, c.BreakOnOverflow())
}

func TestLoadEnv_NoVariables(t *testing.T) {
	c := New()
	require.NoError(t, c.LoadEnv())

	// Defaults untouched.
	assert.Equal(t, uint64(DefaultThreshold), c.Threshold())
	assert.True(t, c.WarnOnce())
}

func TestLoadEnv_PartialOverride(t *testing.T) {
	t.Setenv("LOOPGUARD_THRESHOLD", "7")

	c := New()
	require.NoError(t, c.LoadEnv())

	assert.Equal(t, uint64(7), c.Threshold())
	assert.True(t, c.WarnOnce(), "unset keys keep their defaults")
	assert.True(t, c.StackTrace(), "unset keys keep their defaults")
}

func TestLoadEnv_MalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric threshold", "LOOPGUARD_THRESHOLD", "a lot"},
		{"negative threshold", "LOOPGUARD_THRESHOLD", "-1"},
		{"non-boolean flag", "LOOPGUARD_BREAK_ON_OVERFLOW", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			c := New()
			err := c.LoadEnv()
			require.Error(t, err)

			// A failed load leaves the configuration unchanged.
			assert.Equal(t, uint64(DefaultThreshold), c.Threshold())
			assert.False(t, c.BreakOnOverflow())
		})
	}
}
