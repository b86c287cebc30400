package locator

import "path/filepath"

// runtimeIdentifiers lists the platform identifiers whose native binaries can
// run on goos/goarch, best match first. Emulated fallbacks come last
// (x64 under Rosetta or Windows on Arm).
func runtimeIdentifiers(goos, goarch string) []string {
	switch goos {
	case "windows":
		switch goarch {
		case "arm64":
			return []string{"win-arm64", "win-x64", "win-x86"}
		case "386":
			return []string{"win-x86"}
		default:
			return []string{"win-x64", "win-x86"}
		}
	case "darwin":
		if goarch == "arm64" {
			return []string{"osx-arm64", "osx-x64"}
		}
		return []string{"osx-x64"}
	case "linux":
		switch goarch {
		case "arm64":
			return []string{"linux-arm64"}
		case "arm":
			return []string{"linux-arm"}
		case "386":
			return []string{"linux-x86"}
		default:
			return []string{"linux-x64"}
		}
	default:
		return nil
	}
}

// nativeDirs returns runtimes/<rid>/native under each install directory.
func nativeDirs(goos, goarch string) []string {
	var dirs []string
	for _, base := range installDirs() {
		for _, rid := range runtimeIdentifiers(goos, goarch) {
			dirs = append(dirs, filepath.Join(base, "runtimes", rid, "native"))
		}
	}
	return dirs
}
