package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solharness/solharness/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	c := New(logger.Test(t))
	require.NotNil(t, c)
}

func TestCommands_Run(t *testing.T) {
	t.Parallel()

	cmd := New(logger.Test(t)).Run()
	require.NotNil(t, cmd)

	assert.Equal(t, "run <plan-file>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("project"))
	assert.NotNil(t, cmd.Flags().Lookup("environment"))
	assert.NotNil(t, cmd.Flags().Lookup("kind"))
	assert.NotNil(t, cmd.Flags().Lookup("config"))
}
