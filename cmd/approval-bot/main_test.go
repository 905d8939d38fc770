package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahanuj/telegram-post-approve/internal/config"
)

func TestRootRunsServeByDefault(t *testing.T) {
	require.NotNil(t, rootCmd.RunE)
	for _, name := range []string{"mode", "listen", "store", "quiet-period"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "root flag %s", name)
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "serve flag %s", name)
	}
}

func TestBindServeFlags(t *testing.T) {
	vp := config.New()
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addServeFlags(fs)
	bindServeFlags(vp, fs)

	assert.Equal(t, config.BackendSQLite, vp.GetString("store.backend"), "unset flags keep defaults")

	require.NoError(t, fs.Set("mode", config.ModeWebhook))
	require.NoError(t, fs.Set("store", config.BackendMemory))
	assert.Equal(t, config.ModeWebhook, vp.GetString("mode"))
	assert.Equal(t, config.BackendMemory, vp.GetString("store.backend"))
}
