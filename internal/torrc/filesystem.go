package torrc

import (
	"os"
	"path/filepath"
)

// FileSystemOptions points tor at its state, cache and GeoIP files.
type FileSystemOptions struct {
	DataDirectory  string
	CacheDirectory string
	GeoIPFile      string
	GeoIPv6File    string

	// AvoidDiskWrites reduces how often tor writes state to disk.
	AvoidDiskWrites bool
}

var _ Entry = (*FileSystemOptions)(nil)

// Validate implements Entry. Directories may be missing as long as their
// parent exists, since tor creates them; GeoIP files must exist.
func (o *FileSystemOptions) Validate() []Issue {
	var issues []Issue
	for _, d := range []struct{ keyword, path string }{
		{"DataDirectory", o.DataDirectory},
		{"CacheDirectory", o.CacheDirectory},
	} {
		if d.path == "" {
			continue
		}
		if !filepath.IsAbs(d.path) {
			issues = append(issues, warnf("%s: relative path %q depends on tor's working directory", d.keyword, d.path))
		}
		fi, err := os.Stat(d.path)
		switch {
		case err == nil && !fi.IsDir():
			issues = append(issues, errorf("%s: %s is not a directory", d.keyword, d.path))
		case os.IsNotExist(err):
			if _, perr := os.Stat(filepath.Dir(d.path)); perr != nil {
				issues = append(issues, errorf("%s: parent of %s does not exist", d.keyword, d.path))
			}
		}
	}
	for _, f := range []struct{ keyword, path string }{
		{"GeoIPFile", o.GeoIPFile},
		{"GeoIPv6File", o.GeoIPv6File},
	} {
		if f.path == "" {
			continue
		}
		if fi, err := os.Stat(f.path); err != nil || fi.IsDir() {
			issues = append(issues, errorf("%s: file not found: %s", f.keyword, f.path))
		}
	}
	return issues
}

// Serialize implements Entry.
func (o *FileSystemOptions) Serialize(w *Writer) {
	if o.DataDirectory != "" {
		w.Line("DataDirectory", o.DataDirectory)
	}
	if o.CacheDirectory != "" {
		w.Line("CacheDirectory", o.CacheDirectory)
	}
	if o.GeoIPFile != "" {
		w.Line("GeoIPFile", o.GeoIPFile)
	}
	if o.GeoIPv6File != "" {
		w.Line("GeoIPv6File", o.GeoIPv6File)
	}
	w.Bool("AvoidDiskWrites", o.AvoidDiskWrites)
}
