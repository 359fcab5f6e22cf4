package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/ignore"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".indexchanignore"), []byte(content), 0o644))
	return dir
}

func TestIgnored_Globstar(t *testing.T) {
	dir := writePolicy(t, "**/vendor/**\n# a comment\nnode_modules/\n")
	p, err := ignore.Load(dir)
	require.NoError(t, err)

	assert.True(t, p.Ignored("pkg/vendor/lib/a.ts", false))
	assert.True(t, p.Ignored("node_modules", true))
	assert.True(t, p.Ignored("node_modules/react/index.ts", false))
	assert.False(t, p.Ignored("src/index.ts", false))
}

func TestIgnored_Negation(t *testing.T) {
	dir := writePolicy(t, "*.ts\n!keep.ts\n")
	p, err := ignore.Load(dir)
	require.NoError(t, err)

	assert.True(t, p.Ignored("drop.ts", false))
	assert.False(t, p.Ignored("keep.ts", false))
}

func TestIgnored_MissingFileIsPermissive(t *testing.T) {
	dir := t.TempDir()
	p, err := ignore.Load(dir)
	require.NoError(t, err)
	assert.False(t, p.Ignored("anything.ts", false))
}
