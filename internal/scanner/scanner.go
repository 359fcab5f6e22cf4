// Package scanner walks a project directory, computes each file's
// content hash, and classifies files as dirty (new or changed since the
// store's last recorded hash) subject to the ignore policy, the input
// side of spec.md §4.6's incremental refresh algorithm.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oxhq/indexchan/internal/ignore"
)

// ScannedFile is one non-ignored source file discovered under root.
type ScannedFile struct {
	Path       string // relative to root, forward-slash separated
	AbsPath    string
	ContentSHA string
	Content    []byte
}

// Scan walks root, skipping .index-chan/ itself and anything the policy
// excludes, returning every matched file with its content and hash.
// extensions restricts the walk to files whose extension is a routed
// grammar (the union of every registered lang.Provider's Extensions()).
func Scan(root string, policy *ignore.Policy, extensions map[string]bool) ([]ScannedFile, error) {
	var out []ScannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rel == ".index-chan" || rel == ".git" {
				return filepath.SkipDir
			}
			if policy.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if policy.Ignored(rel, false) {
			return nil
		}
		if !extensions[filepath.Ext(path)] {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		out = append(out, ScannedFile{
			Path:       filepath.ToSlash(rel),
			AbsPath:    path,
			ContentSHA: HashContent(content),
			Content:    content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HashContent computes the collision-resistant content digest spec.md
// §3 requires for the File.ContentSHA attribute.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
