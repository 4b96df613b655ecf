package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/recera/mxc/internal/diag"
)

func warnings(n int) diag.List {
	var l diag.List
	for i := 0; i < n; i++ {
		l.Warnf(diag.Pos{Line: i + 1, Column: 1}, "unresolved identifier %q is emitted unqualified", "x")
	}
	return l
}

func failing() diag.List {
	var l diag.List
	l.Errorf(diag.Pos{Line: 4, Column: 2}, "unclosed tag <s:Panel>")
	return l
}

func update(t *testing.T, m Dashboard, msg tea.Msg) Dashboard {
	t.Helper()
	next, _ := m.Update(msg)
	d, ok := next.(Dashboard)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return d
}

func finished(files ...FileStatus) BuildFinishedMsg {
	return BuildFinishedMsg{Files: files, Duration: 12 * time.Millisecond}
}

func TestDashboardOrdersFailuresFirst(t *testing.T) {
	m := NewDashboard("/proj/src", nil)
	m = update(t, m, BuildStartedMsg{Files: []string{"a", "b", "c"}})
	if !m.building || m.pending != 3 {
		t.Fatalf("building = %v, pending = %d", m.building, m.pending)
	}

	m = update(t, m, finished(
		FileStatus{File: "/proj/src/Alpha.mxml", Written: true},
		FileStatus{File: "/proj/src/Beta.mxml", Written: true, Diagnostics: warnings(1)},
		FileStatus{File: "/proj/src/Gamma.mxml", Diagnostics: failing()},
		FileStatus{File: "/proj/src/Delta.mxml", Written: true, Cached: true},
	))

	want := []string{
		"/proj/src/Gamma.mxml",
		"/proj/src/Beta.mxml",
		"/proj/src/Alpha.mxml",
		"/proj/src/Delta.mxml",
	}
	if diff := cmp.Diff(want, m.order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if m.building {
		t.Error("still building after BuildFinishedMsg")
	}
}

func TestDashboardView(t *testing.T) {
	m := NewDashboard("/proj/src", nil)
	if !strings.Contains(m.View(), "waiting for the first build") {
		t.Error("initial view does not say it is waiting")
	}

	m = update(t, m, finished(
		FileStatus{File: "/proj/src/Main.mxml", Written: true, Cached: true},
		FileStatus{File: "/proj/src/forms/Login.mxml", Diagnostics: failing()},
	))
	view := m.View()

	for _, want := range []string{
		"mxc watch",
		"forms/Login.mxml",
		"Main.mxml (cached)",
		"2 files, 1 cached, 1 failed",
		// the failing file is selected first, so its diagnostics are shown
		"4:2 error unclosed tag <s:Panel> [StructuralError]",
		"q quit",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view does not contain %q:\n%s", want, view)
		}
	}
}

func TestDashboardRemovedFiles(t *testing.T) {
	m := NewDashboard("", nil)
	m = update(t, m, finished(
		FileStatus{File: "A.mxml", Written: true},
		FileStatus{File: "B.mxml", Written: true},
	))
	m.selected = 1

	m = update(t, m, BuildFinishedMsg{Removed: []string{"B.mxml"}})
	if diff := cmp.Diff([]string{"A.mxml"}, m.order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestDashboardBuildError(t *testing.T) {
	m := NewDashboard("", nil)
	m = update(t, m, BuildFinishedMsg{Err: errors.New("open src: permission denied")})
	if !strings.Contains(m.View(), "build failed: open src: permission denied") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestDashboardKeys(t *testing.T) {
	rebuilt := make(chan struct{}, 1)
	m := NewDashboard("", func() { rebuilt <- struct{}{} })
	m = update(t, m, finished(
		FileStatus{File: "A.mxml", Written: true},
		FileStatus{File: "B.mxml", Written: true},
		FileStatus{File: "C.mxml", Written: true},
	))

	tests := []struct {
		key  tea.KeyMsg
		want int
	}{
		{tea.KeyMsg{Type: tea.KeyDown}, 1},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}, 2},
		{tea.KeyMsg{Type: tea.KeyDown}, 2},
		{tea.KeyMsg{Type: tea.KeyUp}, 1},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}, 0},
		{tea.KeyMsg{Type: tea.KeyUp}, 0},
	}
	for _, tt := range tests {
		m = update(t, m, tt.key)
		if m.selected != tt.want {
			t.Errorf("after %q selected = %d, want %d", tt.key.String(), m.selected, tt.want)
		}
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	select {
	case <-rebuilt:
	case <-time.After(time.Second):
		t.Error("r did not trigger a rebuild")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if next.View() != "" {
		t.Error("view after quit is not empty")
	}
}
