// Package fileid derives deterministic identifiers from catalog artifact files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const prefix = "files:"

// ArtifactVersion returns a version id for a set of artifact files built from each file's
// cleaned path, size, and modification time. It changes whenever any artifact is rewritten.
func ArtifactVersion(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat artifact: %w", err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", filepath.Clean(p), info.Size(), info.ModTime().UnixNano())
	}
	sum := h.Sum(nil)
	return prefix + hex.EncodeToString(sum[:8]), nil
}
