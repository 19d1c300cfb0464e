package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if _, err := filepath.Abs(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	return nil
}

func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
