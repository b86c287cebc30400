//go:build !windows && !darwin

package locator

// systemDirs returns where distribution packages install tor.
func systemDirs() []string {
	return []string{"/usr/sbin", "/usr/bin"}
}
