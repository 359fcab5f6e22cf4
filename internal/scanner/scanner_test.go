package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/scanner"
)

func TestScan_HonoursIgnoreAndExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte("function f(){}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "b.ts"), []byte("function g(){}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".indexchanignore"), []byte("vendor/\n"), 0o644))

	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	files, err := scanner.Scan(dir, policy, map[string]bool{".ts": true, ".tsx": true})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.ts", files[0].Path)
	assert.NotEmpty(t, files[0].ContentSHA)
}

func TestHashContent_Deterministic(t *testing.T) {
	a := scanner.HashContent([]byte("hello"))
	b := scanner.HashContent([]byte("hello"))
	c := scanner.HashContent([]byte("hello!"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // 256-bit digest, hex-encoded
}
