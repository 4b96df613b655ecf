package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/recera/mxc/internal/cache"
	"github.com/recera/mxc/internal/compiler"
	"github.com/recera/mxc/internal/config"
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/ui"
)

// buildFlags are shared by build, check, watch and serve
type buildFlags struct {
	dir     string
	out     string
	json    bool
	workers int
	noCache bool
}

// project is a loaded configuration plus the compiler options derived from it
type project struct {
	cfg    *config.Config
	opts   compiler.Options
	srcDir string
	outDir string

	// mu serializes builds started by the watcher and by the dashboard
	mu sync.Mutex
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(".")
}

func openProject(configPath string, flags buildFlags) (*project, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	p := &project{
		cfg:    cfg,
		srcDir: cfg.SrcDir,
		outDir: cfg.OutDir,
		opts: compiler.Options{
			Markup:      cfg.MarkupOptions(),
			Component:   cfg.ComponentOptions(),
			Codegen:     cfg.CodegenOptions(),
			Workers:     cfg.Workers,
			Fingerprint: cfg.Fingerprint(),
		},
	}
	if flags.dir != "" {
		p.srcDir = flags.dir
	}
	if flags.out != "" {
		p.outDir = flags.out
	}
	if flags.workers > 0 {
		p.opts.Workers = flags.workers
	}

	if cacheConfig, enabled := cfg.CacheOptions(); enabled && !flags.noCache {
		c, err := cache.New(cacheConfig)
		if err != nil {
			log.Printf("⚠️  Failed to initialize build cache: %v", err)
		} else {
			p.opts.Cache = c
		}
	}
	return p, nil
}

// Close saves the cache index
func (p *project) Close() {
	if p.opts.Cache == nil {
		return
	}
	if err := p.opts.Cache.Close(); err != nil {
		log.Printf("⚠️  Failed to save cache index: %v", err)
	}
}

// sources returns args when given, otherwise every document below the source dir
func (p *project) sources(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if _, err := os.Stat(p.srcDir); err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	return compiler.FindSources(p.srcDir, p.cfg.Extension)
}

// rel returns file relative to the source dir; files outside it keep only their name
func (p *project) rel(file string) string {
	r, err := filepath.Rel(p.srcDir, file)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return filepath.Base(file)
	}
	return r
}

// buildReport summarizes one build
type buildReport struct {
	Results []*compiler.Result
	// Outputs holds the written files, indexed like Results
	Outputs  []compiler.Outputs
	Failed   int
	Warnings int
	Cached   int
	Duration time.Duration
}

// Diagnostics returns the diagnostics of every file
func (r *buildReport) Diagnostics() diag.List {
	var all diag.List
	for _, res := range r.Results {
		all.Append(res.Diagnostics)
	}
	return all
}

// Summary is the one-line description of the build
func (r *buildReport) Summary() string {
	return fmt.Sprintf("%s in %s", ui.Summary(len(r.Results), r.Failed, r.Warnings, r.Cached), r.Duration.Round(time.Millisecond))
}

// Statuses converts the report for the dashboard
func (r *buildReport) Statuses() []ui.FileStatus {
	statuses := make([]ui.FileStatus, len(r.Results))
	for i, res := range r.Results {
		statuses[i] = ui.FileStatus{
			File:        res.File,
			Diagnostics: res.Diagnostics,
			Cached:      res.Cached,
			Written:     r.Outputs[i].Module != "",
		}
	}
	return statuses
}

// build compiles files and, when write is set, writes the outputs of every usable
// result. A document with diagnostics never fails the build itself; the report
// counts it instead.
func (p *project) build(ctx context.Context, files []string, write bool) (*buildReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	results, err := compiler.CompileAll(ctx, files, p.opts)
	if err != nil {
		return nil, err
	}

	report := &buildReport{Results: results, Outputs: make([]compiler.Outputs, len(results))}
	var errs []error
	for i, r := range results {
		if r.Cached {
			report.Cached++
		}
		if r.Diagnostics.HasErrors() {
			report.Failed++
		}
		report.Warnings += len(r.Diagnostics) - len(r.Diagnostics.Errors())

		if !write || !r.Usable() {
			continue
		}
		out, err := compiler.WriteOutputs(r, p.outDir, p.rel(r.File))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report.Outputs[i] = out
	}
	report.Duration = time.Since(start)
	return report, errors.Join(errs...)
}

// remove deletes the outputs of documents that no longer exist
func (p *project) remove(files []string) {
	for _, file := range files {
		if p.opts.Cache != nil {
			p.opts.Cache.InvalidateSource(file)
		}
		out := compiler.OutputPaths(p.outDir, p.rel(file))
		for _, path := range []string{out.Module, out.Tree, out.Style} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("⚠️  Failed to remove %s: %v", path, err)
			}
		}
	}
}
