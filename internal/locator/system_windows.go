//go:build windows

package locator

import (
	"os"
	"path/filepath"
)

// systemDirs returns the system directory followed by the Windows directory.
func systemDirs() []string {
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = os.Getenv("windir")
	}
	if root == "" {
		return nil
	}
	return []string{filepath.Join(root, "System32"), root}
}
