package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("COMPTES_CONFIG", filepath.Join(dir, "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, ".local", "share", "comptes", "comptes.db"), cfg.Database.Path)
	require.Equal(t, 100, cfg.Import.ChunkSize)
	require.Equal(t, 500, cfg.Import.LookupChunkSize)
	require.Equal(t, 10, cfg.Import.MaxIDGap)
	require.Equal(t, 90, cfg.Import.MaxDayGap)
	require.False(t, cfg.Import.ValidateBalances)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestSaveThenLoadWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "config.toml")
	t.Setenv("HOME", dir)
	t.Setenv("COMPTES_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(dir, "ledger.db")
	cfg.Import.ValidateBalances = true
	cfg.Import.PreviewLimit = 25
	require.NoError(t, Save(cfg))

	_, err = os.Stat(path)
	require.NoError(t, err)

	t.Setenv("COMPTES_IMPORT_MAX_DAY_GAP", "30")
	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg.Database.Path, loaded.Database.Path)
	require.True(t, loaded.Import.ValidateBalances)
	require.Equal(t, 25, loaded.Import.PreviewLimit)
	require.Equal(t, 30, loaded.Import.MaxDayGap)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database\npath = "), 0o600))
	t.Setenv("HOME", dir)
	t.Setenv("COMPTES_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}
