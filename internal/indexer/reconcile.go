package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"image-editor/internal/logging"
	"image-editor/internal/metrics"
)

// DefaultGracePeriod is how old an unreferenced file must be before removal.
const DefaultGracePeriod = time.Hour

// PathLister returns the relative path of every recorded asset.
type PathLister interface {
	AttachmentPaths(ctx context.Context) (map[string]struct{}, error)
}

// FileStore is the part of the uploads store the Reconciler uses.
type FileStore interface {
	Root() string
	Delete(rel string) error
}

// Reconciler finds and removes unreferenced uploads.
type Reconciler struct {
	assets PathLister
	files  FileStore
	grace  time.Duration
	now    func() time.Time
}

// New creates a Reconciler. A non-positive grace uses DefaultGracePeriod.
func New(assets PathLister, files FileStore, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Reconciler{assets: assets, files: files, grace: grace, now: time.Now}
}

// Orphans lists unreferenced files older than the grace period, as paths
// relative to the uploads root with forward slashes.
func (r *Reconciler) Orphans(ctx context.Context) ([]string, error) {
	// Read the records first: a file saved after this point is younger
	// than the cutoff and is skipped below.
	known, err := r.assets.AttachmentPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("indexer: list assets: %w", err)
	}

	root := r.files.Root()
	cutoff := r.now().Add(-r.grace)
	var orphans []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Debug("indexer: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, ok := known[rel]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		orphans = append(orphans, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

// Sweep removes every orphan and returns how many were deleted. It has the
// signature of a maintenance task.
func (r *Reconciler) Sweep(ctx context.Context) (int64, error) {
	orphans, err := r.Orphans(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, rel := range orphans {
		if err := r.files.Delete(rel); err != nil {
			metrics.EditorOrphanCleanups.WithLabelValues("failed").Inc()
			logging.Warn("indexer: failed to remove orphaned upload %s: %v", rel, err)
			continue
		}
		metrics.EditorOrphanCleanups.WithLabelValues("removed").Inc()
		removed++
	}

	if removed > 0 {
		logging.Info("Removed %d orphaned upload(s)", removed)
	}
	return removed, nil
}
