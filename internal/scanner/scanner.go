package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"filepub/internal/logging"
)

// ErrNotDirectory is returned when the walk root does not denote a
// directory at call time.
var ErrNotDirectory = errors.New("root path is not a directory")

/*
Walk recursively visits every file under root, calling visit once per
non-directory entry.

Failure policy:
1. Broken symlinks are logged and skipped.
2. A permission or other access error on a single entry is logged and
   skipped; siblings keep being visited.
3. An error on the root itself aborts the walk and is returned.
4. An error returned by visit aborts the walk and is returned as-is
   (the caller uses this for cancellation).

The walk is lazy in the WalkDir sense: entries are discovered as they
are visited, so a tree mutating underneath gives best-effort results,
not a snapshot. Calling Walk again is a fresh traversal.
*/
func Walk(root string, log *logging.Logger, visit func(path string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("scanning root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	log.Debugf("starting recursive scan of %s", root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				// Losing the root mid-walk is structural, give up.
				return fmt.Errorf("scanning root %s: %w", root, walkErr)
			}
			log.Warnf("error accessing %s: %v", path, walkErr)
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				log.Warnf("skipping broken symlink: %s", path)
				return nil
			}
			// A symlink to a directory is still a directory.
			if info.IsDir() {
				return nil
			}
		}

		return visit(path)
	})
}
