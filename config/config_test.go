package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	ConfigFile = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { ConfigFile = "" })

	// an explicitly named config file must exist
	require.Error(t, Init())

	ConfigFile = ""
	require.NoError(t, Init())
	require.Equal(t, uint16(8765), Parameters.HttpWsPort)
	require.Equal(t, uint32(8), Parameters.PingIntervalSec)
	require.Equal(t, uint32(10), Parameters.PongTimeoutSec)
}

func TestInitMergesFile(t *testing.T) {
	dir := t.TempDir()
	ConfigFile = filepath.Join(dir, "config.json")
	t.Cleanup(func() { ConfigFile = "" })

	content := `{"HttpWsPort": 9000, "LogLevel": "debug"}`
	require.NoError(t, ioutil.WriteFile(ConfigFile, []byte(content), 0644))

	require.NoError(t, Init())
	require.Equal(t, uint16(9000), Parameters.HttpWsPort)
	require.Equal(t, "debug", Parameters.LogLevel)
	// untouched fields keep defaults
	require.Equal(t, uint16(8766), Parameters.WebServicePort)
}

func TestInitRejectsBadHeartbeat(t *testing.T) {
	dir := t.TempDir()
	ConfigFile = filepath.Join(dir, "config.json")
	t.Cleanup(func() { ConfigFile = "" })

	content := `{"PingIntervalSec": 10, "PongTimeoutSec": 5}`
	require.NoError(t, ioutil.WriteFile(ConfigFile, []byte(content), 0644))

	require.Error(t, Init())
}
