// Package watch reports changed source documents in debounced batches
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Batch is the set of documents that changed while the watcher waited for writes
// to settle
type Batch struct {
	Changed []string
	Removed []string
}

// Empty reports whether the batch carries no paths
func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Removed) == 0
}

// Watcher watches a source tree for documents with one extension
type Watcher struct {
	fs       *fsnotify.Watcher
	root     string
	ext      string
	debounce time.Duration
}

// New watches root and every non-hidden directory below it
func New(root, ext string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	w := &Watcher{fs: fw, root: root, ext: ext, debounce: debounce}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) isRelevant(path string) bool {
	return strings.EqualFold(filepath.Ext(path), w.ext)
}

// Run delivers batches to fn until ctx is cancelled or the watcher is closed. fn runs
// on the watcher goroutine, so events arriving meanwhile are held for the next batch.
func (w *Watcher) Run(ctx context.Context, fn func(Batch)) error {
	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	pending := make(map[string]fsnotify.Op)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// documents may already exist in a directory moved into the tree
					if err := w.addTree(event.Name); err != nil {
						log.Printf("⚠️  Failed to watch %s: %v", event.Name, err)
					}
					w.pendExisting(event.Name, pending)
					debounce.Reset(w.debounce)
					continue
				}
			}
			if !w.isRelevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] |= event.Op
			debounce.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Printf("⚠️  Watcher overflow, rescanning %s", w.root)
				w.pendExisting(w.root, pending)
				debounce.Reset(w.debounce)
				continue
			}
			log.Println("Watcher error:", err)

		case <-debounce.C:
			if batch := collect(pending); !batch.Empty() {
				fn(batch)
			}
			pending = make(map[string]fsnotify.Op)
		}
	}
}

// pendExisting marks every document below dir as changed
func (w *Watcher) pendExisting(dir string, pending map[string]fsnotify.Op) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.isRelevant(path) {
			pending[path] |= fsnotify.Write
		}
		return nil
	})
}

// collect splits pending events by whether the file still exists. Renames and
// removals are reported as removed unless the path was written again afterwards.
func collect(pending map[string]fsnotify.Op) Batch {
	var b Batch
	for path := range pending {
		if _, err := os.Stat(path); err == nil {
			b.Changed = append(b.Changed, path)
		} else {
			b.Removed = append(b.Removed, path)
		}
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Removed)
	return b
}
