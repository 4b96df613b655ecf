package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/ui"
)

func addBuildFlags(cmd *cobra.Command, flags *buildFlags) {
	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "Source directory (defaults to srcDir from mxc.yaml)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Parallel compiles (defaults to one per CPU)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Ignore the build cache")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print diagnostics as JSON")
}

func newBuildCommand(configPath *string) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [files...]",
		Short: "Compile documents to ES modules",
		Long: `Compiles the given documents, or every document below the source directory,
writing <name>.js, <name>.tree.json and <name>.css to the output directory.
Documents with structural errors are not written. Exits non-zero when any
document has errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), *configPath, args, flags, true)
		},
	}

	addBuildFlags(cmd, &flags)
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (defaults to outDir from mxc.yaml)")
	return cmd
}

func newCheckCommand(configPath *string) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Report diagnostics without writing output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), *configPath, args, flags, false)
		},
	}

	addBuildFlags(cmd, &flags)
	return cmd
}

// fileReport is the --json form of one document
type fileReport struct {
	File        string    `json:"file"`
	Class       string    `json:"class"`
	Cached      bool      `json:"cached"`
	Written     []string  `json:"written,omitempty"`
	Diagnostics diag.List `json:"diagnostics"`
}

func runBuild(ctx context.Context, configPath string, args []string, flags buildFlags, write bool) error {
	p, err := openProject(configPath, flags)
	if err != nil {
		return err
	}
	defer p.Close()

	files, err := p.sources(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Printf("⚠️  No %s documents found in %s", p.cfg.Extension, p.srcDir)
		return nil
	}

	if !flags.json {
		log.Printf("🔨 Compiling %d %s...", len(files), plural(len(files), "document"))
	}
	report, err := p.build(ctx, files, write)
	if err != nil {
		return err
	}

	if flags.json {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(os.Stderr, ui.RenderDiagnostics(report.Diagnostics()))
		log.Println(report.Summary())
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d %s failed", report.Failed, len(files), plural(len(files), "document"))
	}
	return nil
}

func printJSON(report *buildReport) error {
	files := make([]fileReport, len(report.Results))
	for i, r := range report.Results {
		files[i] = fileReport{
			File:        r.File,
			Class:       r.ClassName,
			Cached:      r.Cached,
			Diagnostics: r.Diagnostics.Sorted(),
		}
		if files[i].Diagnostics == nil {
			files[i].Diagnostics = diag.List{}
		}
		out := report.Outputs[i]
		for _, path := range []string{out.Module, out.Tree, out.Style} {
			if path != "" {
				files[i].Written = append(files[i].Written, path)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(files)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
