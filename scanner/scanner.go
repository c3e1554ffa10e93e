// Package scanner finds the input files under a directory.
package scanner

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions []string
}

func New(rootDir string, extensions ...string) *Scanner {
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Scan walks the root directory and returns the files with a target
// extension, sorted by path. Hidden directories are not entered.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != s.rootDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.IsTarget(path) {
			files = append(files, FileInfo{Path: path, Size: info.Size()})
		}
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// IsTarget reports whether path has one of the scanned extensions.
func (s *Scanner) IsTarget(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return slices.Contains(s.extensions, filepath.Ext(path))
}
