// Package tree lists the entries of the data directories inside a mirrored repository.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ExcludePrefixes contains entry name prefixes that are never listed
var ExcludePrefixes = []string{
	".git",
	".github",
}

// Files returns the names of regular files in dir ending with ext, in lexical order.
// A missing dir yields an error matching fs.ErrNotExist.
func Files(dir, ext string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || shouldExclude(e.Name()) {
			continue
		}
		if ext != "" && !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Dirs returns the names of subdirectories of dir, in lexical order.
func Dirs(dir string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || shouldExclude(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// IsMissing reports whether err means the listed directory does not exist
func IsMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dir %s: %w", dir, err)
	}
	return entries, nil
}

func shouldExclude(name string) bool {
	for _, exclude := range ExcludePrefixes {
		if strings.HasPrefix(name, exclude) {
			return true
		}
	}
	return false
}
