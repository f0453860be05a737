package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// finalizeParallelism bounds concurrent removals during finalization
const finalizeParallelism = 8

// finalize cleans the mirror after a completed run: configured files first, then configured
// directories, then every directory left empty. Entries are relative to the mirror root.
func (e *Engine) finalize(ctx context.Context) error {
	root := e.cfg.Site.OutputDir
	log := e.log.WithField("stage", "finalize")

	if err := removeAll(ctx, root, e.cfg.Site.FilesToDelete(), false); err != nil {
		return err
	}
	if err := removeAll(ctx, root, e.cfg.Site.DirectoriesToDelete(), true); err != nil {
		return err
	}
	removed, err := utils.RemoveEmptyDirs(root, log)
	if err != nil {
		return err
	}
	log.Infof("Finalization done, removed %d empty directories", removed)
	return nil
}

func removeAll(ctx context.Context, root string, entries []string, dirs bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(finalizeParallelism)
	for _, entry := range entries {
		target := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(entry, "/")))
		rel, err := filepath.Rel(root, target)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("%w: refusing to delete '%s' outside the mirror", utils.ErrConfigValidation, entry)
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			var err error
			if dirs {
				err = os.RemoveAll(target)
			} else {
				err = os.Remove(target)
				if os.IsNotExist(err) {
					err = nil
				}
			}
			if err != nil {
				return fmt.Errorf("%w: deleting '%s': %w", utils.ErrFilesystem, target, err)
			}
			return nil
		})
	}
	return g.Wait()
}
