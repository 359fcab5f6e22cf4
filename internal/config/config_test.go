package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/config"
)

func TestLoad_NoConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".index-chan"), 0o755))
	yaml := "token_budget: 4000\nmalformed_input_threshold: 0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".index-chan", "config.yaml"), []byte(yaml), 0o644))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.TokenBudget)
	assert.Equal(t, 0.5, cfg.MalformedInputThreshold)
}

func TestLoad_EnvOverridesYAMLAndDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".index-chan"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".index-chan", "config.yaml"), []byte("token_budget: 4000\n"), 0o644))

	t.Setenv("INDEXCHAN_TOKEN_BUDGET", "9000")
	t.Setenv("INDEXCHAN_WAL_AUTOCHECKPOINT_MB", "64")
	t.Setenv("INDEXCHAN_PARSE_WORKERS", "4")
	t.Setenv("INDEXCHAN_MALFORMED_INPUT_THRESHOLD", "0.2")

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.TokenBudget)
	assert.Equal(t, 64, cfg.WALAutoCheckpointMB)
	assert.Equal(t, 4, cfg.ParseWorkers)
	assert.Equal(t, 0.2, cfg.MalformedInputThreshold)
}

func TestLoad_EnvInvalidValuesAreIgnored(t *testing.T) {
	root := t.TempDir()
	t.Setenv("INDEXCHAN_TOKEN_BUDGET", "not-a-number")
	t.Setenv("INDEXCHAN_MALFORMED_INPUT_THRESHOLD", "2.5")

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, config.Default().TokenBudget, cfg.TokenBudget)
	assert.Equal(t, config.Default().MalformedInputThreshold, cfg.MalformedInputThreshold)
}
