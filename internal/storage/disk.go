package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint reports the on-disk size of each named path (database file, catalog,
// search index). Directories are summed recursively, missing paths report 0 and
// empty paths are skipped.
func Footprint(paths map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(paths))
	for name, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size() + walSize(p), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}

// walSize adds SQLite write-ahead and shared-memory files next to a database.
func walSize(p string) int64 {
	var n int64
	for _, suffix := range []string{"-wal", "-shm"} {
		if fi, err := os.Stat(p + suffix); err == nil {
			n += fi.Size()
		}
	}
	return n
}
