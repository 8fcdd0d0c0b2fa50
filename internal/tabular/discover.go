package tabular

import (
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover expands a glob pattern (with ** support) into the supported
// files it matches, sorted by path. A pattern without wildcards naming a
// single file is returned as is, whatever its extension, so the caller
// gets a precise error from Prepare.
func Discover(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern matching failed: %w", err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if !Supported(m) {
			continue
		}
		files = append(files, m)
	}
	slices.Sort(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported files match %q", pattern)
	}
	return files, nil
}
