package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// ArtifactUsage describes the on-disk footprint of catalog artifacts.
type ArtifactUsage struct {
	Bytes   int64    `json:"bytes"`
	Missing []string `json:"missing,omitempty"`
}

// DiskUsage sums the size of the given artifact paths. A path may be a file or a directory
// (recursively summed). Missing paths are reported in Missing; empty paths are skipped.
func DiskUsage(paths ...string) (ArtifactUsage, error) {
	var usage ArtifactUsage
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				usage.Missing = append(usage.Missing, p)
				continue
			}
			return ArtifactUsage{}, err
		}
		if !info.IsDir() {
			usage.Bytes += info.Size()
			continue
		}
		n, err := dirSize(p)
		if err != nil {
			return ArtifactUsage{}, err
		}
		usage.Bytes += n
	}
	return usage, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
