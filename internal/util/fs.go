package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin keeps only the base of name so uploaded file names cannot escape root.
func SafeJoin(root, name string) string {
	return filepath.Join(root, SafeBase(name))
}

// SafeBase strips any directory part, including Windows separators.
func SafeBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "file"
	}
	return base
}

// LowerExt returns the lower-case extension of name, including the dot.
func LowerExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
