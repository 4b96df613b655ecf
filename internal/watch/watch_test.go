package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func startWatcher(t *testing.T, dir string) <-chan Batch {
	t.Helper()
	w, err := New(dir, ".mxml", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan Batch, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(b Batch) { batches <- b })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return batches
}

func nextBatch(t *testing.T, batches <-chan Batch) Batch {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a batch")
		return Batch{}
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	a := filepath.Join(dir, "A.mxml")
	b := filepath.Join(dir, "B.mxml")
	for i := 0; i < 5; i++ {
		write(t, a, "<a/>")
	}
	write(t, b, "<b/>")
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	got := nextBatch(t, batches)
	if diff := cmp.Diff(Batch{Changed: []string{a, b}}, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}

	select {
	case extra := <-batches:
		t.Errorf("burst produced a second batch: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Gone.mxml")
	write(t, path, "<a/>")
	batches := startWatcher(t, dir)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	got := nextBatch(t, batches)
	if diff := cmp.Diff(Batch{Removed: []string{path}}, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, dir)

	sub := filepath.Join(dir, "views")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// let the watcher pick up the directory before writing into it
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "List.mxml")
	write(t, path, "<a/>")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, p := range b.Changed {
				if p == path {
					return
				}
			}
		case <-deadline:
			t.Fatal("change in a new directory was not reported")
		}
	}
}

func TestWatcherSkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	if err := os.Mkdir(hidden, 0755); err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, dir)

	write(t, filepath.Join(hidden, "Skip.mxml"), "<a/>")
	select {
	case b := <-batches:
		t.Errorf("hidden directory change reported: %+v", b)
	case <-time.After(300 * time.Millisecond):
	}
}
