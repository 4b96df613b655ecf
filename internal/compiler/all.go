package compiler

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CompileAll compiles files concurrently. Results are returned in the order of files;
// each document gets its own diagnostics. The error is non-nil only when a file cannot
// be read or ctx is cancelled, never because a document has diagnostics.
func CompileAll(ctx context.Context, files []string, opts Options) ([]*Result, error) {
	results := make([]*Result, len(files))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := CompileFile(file, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// FindSources returns every file below dir with the given extension, sorted
func FindSources(dir, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find source files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
