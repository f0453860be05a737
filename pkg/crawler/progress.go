package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// WriteProgress replaces the counter file with n. The file is written to a temporary
// sibling and renamed, so pollers never see a half-written number.
func WriteProgress(path string, n int64) error {
	return replaceFile(path, []byte(strconv.FormatInt(n, 10)))
}

// ResetProgress truncates the counter file
func ResetProgress(path string) error {
	return replaceFile(path, nil)
}

// ReadProgress returns the value in the counter file.
// A missing, empty or unparsable file reads as 0.
func ReadProgress(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func replaceFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for '%s': %w", utils.ErrFilesystem, path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
