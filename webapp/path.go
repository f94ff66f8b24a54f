/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package webapp

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveSafePath maps a URL path to an existing file system entry under baseDir.
// Only normal path components are kept: empty, "." and ".." components are dropped,
// so the result can never point outside baseDir.
func resolveSafePath(baseDir, urlPath string) (string, bool) {
	parts := strings.FieldsFunc(urlPath, func(r rune) bool { return r == '/' || r == filepath.Separator })
	components := make([]string, 0, len(parts)+1)
	components = append(components, baseDir)
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		components = append(components, part)
	}

	resolved := filepath.Join(components...)
	if _, err := os.Stat(resolved); err != nil {
		return "", false
	}
	return resolved, true
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
