package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recera/mxc/internal/live"
)

func newServeCommand(configPath *string) *cobra.Command {
	var flags buildFlags
	var host string
	var port int
	var tui bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch, serve the output directory and reload browsers on change",
		Long: `Runs the watcher and an HTTP server over the output directory. HTML pages get
a script that connects to the live endpoint, reloads when modules change and
logs diagnostics to the browser console.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(*configPath, flags)
			if err != nil {
				return err
			}
			defer p.Close()

			// CLI takes precedence over mxc.yaml
			if host == "" {
				host = p.cfg.Dev.Host
			}
			if port == 0 {
				port = p.cfg.Dev.Port
			}
			return runServe(cmd.Context(), p, net.JoinHostPort(host, strconv.Itoa(port)), tui)
		},
	}

	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "Source directory (defaults to srcDir from mxc.yaml)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (defaults to outDir from mxc.yaml)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Ignore the build cache")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind the server to")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the server on")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show an interactive dashboard")
	return cmd
}

func runServe(ctx context.Context, p *project, addr string, tui bool) error {
	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	hub := live.NewHub()
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle(live.ClientPath, hub)
	mux.Handle(live.ScriptPath, live.ScriptHandler())
	mux.Handle("/", staticHandler(p.outDir))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("🌐 Serving %s at http://%s", p.outDir, addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err := <-serveErr:
			log.Printf("❌ Server error: %v", err)
			cancel()
		case <-ctx.Done():
		}
	}()

	reloads := liveObserver{hub: hub, outDir: p.outDir}
	if tui {
		return runDashboard(ctx, p, reloads)
	}
	return newLoop(p, logObserver{}, reloads).run(ctx)
}

// liveObserver publishes builds to connected browsers
type liveObserver struct {
	hub    *live.Hub
	outDir string
}

func (liveObserver) started([]string) {}

func (o liveObserver) finished(report *buildReport, removed []string, err error) {
	if err != nil && len(report.Results) == 0 {
		return
	}
	o.hub.Diagnostics(report.Diagnostics())

	var files []string
	for _, out := range report.Outputs {
		if out.Module == "" {
			continue
		}
		if rel, err := filepath.Rel(o.outDir, out.Module); err == nil {
			files = append(files, "/"+filepath.ToSlash(rel))
		}
	}
	if len(files) > 0 || len(removed) > 0 {
		o.hub.Reload(files)
	}
}

// staticHandler serves dir, adding the live script to HTML pages
func staticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")

		path := r.URL.Path
		if strings.HasSuffix(path, "/") {
			path += "index.html"
		}
		if filepath.Ext(path) != ".html" {
			files.ServeHTTP(w, r)
			return
		}

		// http.Dir rejects paths that escape dir
		f, err := http.Dir(dir).Open(path)
		if err != nil {
			files.ServeHTTP(w, r)
			return
		}
		defer f.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(f); err != nil {
			http.Error(w, "Failed to read file", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(injectLiveScript(buf.Bytes()))
	})
}

// injectLiveScript adds the live script before </body>, or at the end of the page
func injectLiveScript(page []byte) []byte {
	tag := []byte(`<script src="` + live.ScriptPath + `"></script>`)
	if bytes.Contains(page, tag) {
		return page
	}
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(page, tag...)
	}
	out := make([]byte, 0, len(page)+len(tag))
	out = append(out, page[:i]...)
	out = append(out, tag...)
	return append(out, page[i:]...)
}
