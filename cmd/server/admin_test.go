package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{{"migrate"}, {"ledger", "verify"}, {"directory", "sync"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	sync, _, err := rootCmd.Find([]string{"directory", "sync"})
	require.NoError(t, err)
	file := sync.Flags().Lookup("file")
	require.NotNil(t, file)
	assert.Equal(t, "-", file.DefValue, "reads stdin by default")
}
