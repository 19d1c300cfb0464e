package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filepub/pkg/models"
)

/*
Extract builds the publishable record for one file:
1. path - fully resolved absolute path (symlinks and relative segments)
2. name - final path component
3. size_bytes - literal byte length reported by the filesystem
4. modified_ts - last modification time, ISO-8601 in local time

Extraction is all-or-nothing: if the entry cannot be statted or
resolved (vanished, permission denied) no partial record is returned.
*/
func Extract(path string) (models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("stat %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("absolute path for %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("resolving %s: %w", path, err)
	}

	return models.FileRecord{
		Path:       resolved,
		Name:       filepath.Base(path),
		SizeBytes:  info.Size(),
		ModifiedTS: info.ModTime().Format(time.RFC3339),
	}, nil
}
