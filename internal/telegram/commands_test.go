package telegram

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWorkspaceListing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"))
	writeFile(t, filepath.Join(root, "src", "main.go"))
	writeFile(t, filepath.Join(root, "src", "util.go"))
	writeFile(t, filepath.Join(root, ".git", "config"))

	got, err := workspaceListing(root)
	if err != nil {
		t.Fatalf("workspaceListing() error: %v", err)
	}
	if !strings.Contains(got, "`README.md`") {
		t.Errorf("listing missing top-level file:\n%s", got)
	}
	if !strings.Contains(got, "`src/` (2 files)") {
		t.Errorf("listing missing directory group:\n%s", got)
	}
	if strings.Contains(got, ".git") {
		t.Errorf("listing should skip hidden entries:\n%s", got)
	}
}

func TestWorkspaceListingEmpty(t *testing.T) {
	got, err := workspaceListing(t.TempDir())
	if err != nil {
		t.Fatalf("workspaceListing() error: %v", err)
	}
	if got != "" {
		t.Errorf("workspaceListing() = %q, want empty", got)
	}
}

func TestDirSampleCapsOutput(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, "f"+string(rune('a'+i))+".txt"))
	}
	writeFile(t, filepath.Join(dir, ".hidden", "skipme.txt"))

	sample, total := dirSample(dir)
	if total != 20 {
		t.Errorf("total = %d, want 20", total)
	}
	if len(sample) != workspaceMaxFilesPerDir {
		t.Errorf("sample size = %d, want %d", len(sample), workspaceMaxFilesPerDir)
	}
}
