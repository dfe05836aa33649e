package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/fabsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEnv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("FABSYNC_ROOT", tmp)
	t.Setenv("FABSYNC_WORKSPACE_ID", "w-env")
	t.Setenv("FABSYNC_TOKEN", "env-token")
	t.Setenv("FABSYNC_FABRIC_URL", "http://127.0.0.1:9000")
	t.Setenv("FABSYNC_POLL_INTERVAL", "5s")

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(tmp, "missing.json")}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, tmp, cfg.Root)
	assert.Equal(t, "w-env", cfg.WorkspaceID)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, config.AuthToken, cfg.AuthMode)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.FabricURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestLoadConfigJSON(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	dummyConfig := `
{
	"root": "` + filepath.ToSlash(tmp) + `",
	"workspace_id": "w-json",
	"auth_mode": "client_credentials",
	"tenant_id": "tenant",
	"client_id": "client",
	"workers": 3
}`
	require.NoError(t, os.WriteFile(path, []byte(dummyConfig), 0o644))

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "w-json", cfg.WorkspaceID)
	assert.Equal(t, config.AuthClientCredentials, cfg.AuthMode)
	assert.Equal(t, "tenant", cfg.TenantID)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"root": "`+filepath.ToSlash(tmp)+`", "workspace_id": "from-file", "workers": 3}`), 0o644))
	t.Setenv("FABSYNC_WORKSPACE_ID", "from-env")
	t.Setenv("FABSYNC_TOKEN", "tok")

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--workspace", "from-flag", "--workers", "4"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.WorkspaceID)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadConfigInvalid(t *testing.T) {
	tmp := t.TempDir()

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(tmp, "none.json"), "--root", tmp, "--auth", "password"}))

	_, err = loadConfig(cmd)
	assert.Error(t, err)
}
