package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetWorkDirUsesConfiguredBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "dotdir")

	got := GetWorkDir(base, "sub")
	want := filepath.Join(base, "sub")
	if got != want {
		t.Errorf("GetWorkDir = %q, want %q", got, want)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Errorf("work dir was not created: %v", err)
	}
}

func TestGetWorkDirExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}

	got := GetWorkDir("~/.guardbot-test")
	t.Cleanup(func() { os.RemoveAll(got) })
	if want := filepath.Join(home, ".guardbot-test"); got != want {
		t.Errorf("GetWorkDir = %q, want %q", got, want)
	}
}
