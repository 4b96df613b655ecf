package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/mxc/internal/ui"
	"github.com/recera/mxc/internal/watch"
)

func newWatchCommand(configPath *string) *cobra.Command {
	var flags buildFlags
	var tui bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild documents as they change",
		Long: `Builds every document below the source directory, then rebuilds the documents
that change. Outputs of deleted documents are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(*configPath, flags)
			if err != nil {
				return err
			}
			defer p.Close()

			if tui {
				return runDashboard(cmd.Context(), p)
			}
			return newLoop(p, logObserver{}).run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "Source directory (defaults to srcDir from mxc.yaml)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (defaults to outDir from mxc.yaml)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Parallel compiles (defaults to one per CPU)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Ignore the build cache")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show an interactive dashboard")
	return cmd
}

// observer is told about every build of a watch loop
type observer interface {
	started(files []string)
	finished(report *buildReport, removed []string, err error)
}

// loop runs an initial build and then rebuilds changed documents
type loop struct {
	p         *project
	observers []observer
}

func newLoop(p *project, observers ...observer) *loop {
	return &loop{p: p, observers: observers}
}

func (l *loop) run(ctx context.Context) error {
	if err := os.MkdirAll(l.p.srcDir, 0755); err != nil {
		return fmt.Errorf("failed to create source directory: %w", err)
	}
	w, err := watch.New(l.p.srcDir, l.p.cfg.Extension, l.p.cfg.DebounceDuration())
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	l.rebuildAll(ctx)
	log.Printf("👀 Watching %s for %s changes...", l.p.srcDir, l.p.cfg.Extension)

	err = w.Run(ctx, func(b watch.Batch) {
		l.rebuild(ctx, b.Changed, b.Removed)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// rebuildAll compiles every document below the source directory
func (l *loop) rebuildAll(ctx context.Context) {
	files, err := l.p.sources(nil)
	if err != nil {
		l.finish(nil, nil, err)
		return
	}
	l.rebuild(ctx, files, nil)
}

func (l *loop) rebuild(ctx context.Context, changed, removed []string) {
	for _, o := range l.observers {
		o.started(changed)
	}
	l.p.remove(removed)
	if len(changed) == 0 {
		l.finish(&buildReport{}, removed, nil)
		return
	}
	report, err := l.p.build(ctx, changed, true)
	l.finish(report, removed, err)
}

func (l *loop) finish(report *buildReport, removed []string, err error) {
	if report == nil {
		report = &buildReport{}
	}
	for _, o := range l.observers {
		o.finished(report, removed, err)
	}
}

// logObserver prints every build to the log
type logObserver struct{}

func (logObserver) started(files []string) {
	if len(files) > 0 {
		log.Printf("🔄 Compiling %d %s...", len(files), plural(len(files), "document"))
	}
}

func (logObserver) finished(report *buildReport, removed []string, err error) {
	for _, f := range removed {
		log.Printf("🗑️  Removed outputs of %s", f)
	}
	if err != nil {
		log.Printf("❌ Build failed: %v", err)
	}
	if len(report.Results) == 0 {
		return
	}
	fmt.Fprint(os.Stderr, ui.RenderDiagnostics(report.Diagnostics()))
	log.Println(report.Summary())
}

// dashboardObserver forwards builds to the bubbletea program
type dashboardObserver struct {
	program *tea.Program
}

func (o dashboardObserver) started(files []string) {
	o.program.Send(ui.BuildStartedMsg{Files: files})
}

func (o dashboardObserver) finished(report *buildReport, removed []string, err error) {
	o.program.Send(ui.BuildFinishedMsg{
		Files:    report.Statuses(),
		Removed:  removed,
		Duration: report.Duration,
		Err:      err,
	})
}

func runDashboard(ctx context.Context, p *project, extra ...observer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the dashboard owns the terminal
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	l := newLoop(p)
	program := tea.NewProgram(ui.NewDashboard(p.srcDir, func() { l.rebuildAll(ctx) }), tea.WithAltScreen())
	l.observers = append([]observer{dashboardObserver{program}}, extra...)

	errc := make(chan error, 1)
	go func() {
		err := l.run(ctx)
		if err != nil {
			// leave the error on screen briefly before tearing the dashboard down
			program.Send(ui.BuildFinishedMsg{Err: err})
			time.Sleep(time.Second)
		}
		program.Quit()
		errc <- err
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	cancel()
	return <-errc
}
