// Package mirror writes processed crawl items under the snapshot root.
package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/parse"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Writer stores mirror items on disk
type Writer struct {
	mapper parse.PathMapper
	log    *logrus.Entry
}

// NewWriter creates a Writer rooted at mapper.Root
func NewWriter(mapper parse.PathMapper, log *logrus.Entry) *Writer {
	return &Writer{mapper: mapper, log: log}
}

// Root returns the snapshot root directory
func (w *Writer) Root() string { return w.mapper.Root }

// Write finalizes the item content for its kind and stores it at its local path.
// A file standing where a parent directory is needed is replaced by the directory.
// Returns false without error when the target path is an existing directory.
func (w *Writer) Write(item *models.MirrorItem) (bool, error) {
	if item == nil {
		return false, fmt.Errorf("%w: nil mirror item", utils.ErrFilesystem)
	}
	if !item.Kind.IsStorable() {
		return false, fmt.Errorf("%w: item kind %s cannot be stored", utils.ErrFilesystem, item.Kind)
	}
	target := w.mapper.FilesystemPath(item.Path)
	if !w.within(target) {
		return false, fmt.Errorf("%w: path %q escapes mirror root", utils.ErrFilesystem, item.Path)
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		w.log.Debugf("Skipping %s: path is a directory", item.Path)
		return false, nil
	}

	if err := w.ensureParent(target); err != nil {
		return false, err
	}

	content, err := Finalize(item.Kind, item.Content)
	if err != nil {
		w.log.Warnf("Keeping original bytes for %s: %v", item.Path, err)
		content = item.Content
	}

	// Unchanged files keep their mtime so successive snapshots diff cleanly
	if utils.FileHasContent(target, content) {
		w.log.Debugf("Unchanged %s", item.Path)
		return true, nil
	}
	if err := os.WriteFile(target, content, 0644); err != nil {
		return false, fmt.Errorf("%w: saving '%s': %w", utils.ErrFilesystem, target, err)
	}
	w.log.Debugf("Saved %s (%d bytes)", item.Path, len(content))
	return true, nil
}

// ensureParent creates the parent directory of target, removing any regular file that occupies one of its ancestors
func (w *Writer) ensureParent(target string) error {
	parent := filepath.Dir(target)
	root := filepath.Clean(w.mapper.Root)

	var ancestors []string
	for dir := parent; dir != root && w.within(dir); dir = filepath.Dir(dir) {
		ancestors = append(ancestors, dir)
		if dir == filepath.Dir(dir) {
			break
		}
	}
	// Outermost first so a file blocking a high level is found before MkdirAll trips on it
	for i := len(ancestors) - 1; i >= 0; i-- {
		info, err := os.Stat(ancestors[i])
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: inspecting '%s': %w", utils.ErrFilesystem, ancestors[i], err)
		}
		if !info.IsDir() {
			w.log.Debugf("Replacing file %s with a directory", ancestors[i])
			if err := os.Remove(ancestors[i]); err != nil {
				return fmt.Errorf("%w: removing file '%s': %w", utils.ErrFilesystem, ancestors[i], err)
			}
			break
		}
	}

	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, parent, err)
	}
	return nil
}

func (w *Writer) within(target string) bool {
	rel, err := filepath.Rel(filepath.Clean(w.mapper.Root), target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
