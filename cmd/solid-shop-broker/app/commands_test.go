package app

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "solid-shop-broker", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "version")
}

func TestServeCmd_RequiresConfig(t *testing.T) {
	flag := serveCmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Annotations[cobra.BashCompOneRequiredFlag], "true")
}
