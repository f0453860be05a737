package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

var fileExtensionPattern = regexp.MustCompile(`\.[a-zA-Z0-9]+$`)

// CountFileExtensions walks targetDir and counts regular files per lowercase extension (without the dot).
// Files without a recognizable extension are not counted.
func CountFileExtensions(targetDir string, log *logrus.Entry) (map[string]int, error) {
	log.Debugf("Starting extension scan for target: %s", targetDir)
	if _, err := os.Stat(targetDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: target directory '%s' does not exist: %w", ErrFilesystem, targetDir, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: error checking target directory '%s': %w", ErrFilesystem, targetDir, err)
	}

	counts := make(map[string]int)
	err := filepath.WalkDir(targetDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Failed to read '%s' during extension scan: %v", path, err)
			return nil // Keep scanning siblings
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := fileExtensionPattern.FindString(d.Name())
		if ext == "" {
			return nil
		}
		counts[strings.ToLower(ext[1:])]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning '%s': %w", ErrFilesystem, targetDir, err)
	}
	log.Debugf("Extension scan found %d distinct extensions under %s", len(counts), targetDir)
	return counts, nil
}

// RemoveEmptyDirs removes every directory under rootDir that is empty, or becomes empty once its
// empty children are removed. rootDir itself is never removed. Returns the number of directories removed.
func RemoveEmptyDirs(rootDir string, log *logrus.Entry) (int, error) {
	removed, _, err := removeEmptyRecursive(rootDir, true, log)
	return removed, err
}

// removeEmptyRecursive walks depth-first and reports whether dirPath ended up empty
func removeEmptyRecursive(dirPath string, isRoot bool, log *logrus.Entry) (int, bool, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Warnf("Failed to read directory '%s': %v", dirPath, err)
		return 0, false, fmt.Errorf("%w: failed to read directory '%s': %w", ErrFilesystem, dirPath, err)
	}

	// Deterministic order keeps logs comparable between runs
	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	removed := 0
	remaining := len(entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dirPath, entry.Name())
		n, empty, err := removeEmptyRecursive(sub, false, log)
		removed += n
		if err != nil {
			return removed, false, err
		}
		if empty {
			remaining--
		}
	}

	if remaining > 0 || isRoot {
		return removed, false, nil
	}
	if err := os.Remove(dirPath); err != nil {
		log.Warnf("Failed to remove empty directory '%s': %v", dirPath, err)
		return removed, false, nil
	}
	log.Debugf("Removed empty directory: %s", dirPath)
	return removed + 1, true, nil
}
