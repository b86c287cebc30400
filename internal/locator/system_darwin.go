//go:build darwin

package locator

// systemDirs covers Homebrew on Apple silicon and Intel. GUI launched
// processes on macOS do not inherit the shell PATH.
func systemDirs() []string {
	return []string{"/opt/homebrew/bin", "/usr/local/bin"}
}
