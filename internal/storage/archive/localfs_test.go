package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/buddy/internal/core"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte("date,price\n")

	if err := fs.Write(ctx, "results/QQQ.csv", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "results/QQQ.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	// Overwrite leaves no temp files behind
	if err := fs.Write(ctx, "results/QQQ.csv", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "results"))
	if len(entries) != 1 {
		t.Errorf("expected 1 file, got %d", len(entries))
	}
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	_, err := fs.Read(context.Background(), "missing.csv")
	if !errors.Is(err, core.ErrArtifactNotFound) {
		t.Errorf("expected ErrArtifactNotFound, got %v", err)
	}
}

func TestLocalFS_RejectsEscape(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	if _, err := fs.Read(context.Background(), "../etc/passwd"); err == nil {
		t.Error("expected error for path outside base")
	}
	if err := fs.Write(context.Background(), "a/../../x", []byte("x")); err == nil {
		t.Error("expected error for path outside base")
	}
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.csv")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.csv", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.csv")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "results/b.csv", []byte("b"))
	fs.Write(ctx, "results/a.csv", []byte("a"))
	fs.Write(ctx, "other/c.csv", []byte("c"))

	paths, err := fs.List(ctx, "results")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 2 || paths[0] != "results/a.csv" || paths[1] != "results/b.csv" {
		t.Errorf("unexpected paths %v", paths)
	}

	all, _ := fs.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("expected 3 paths, got %d", len(all))
	}

	none, err := fs.List(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty list, got %v, %v", none, err)
	}
}

func TestLocalFS_Delete(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "delete.csv", []byte("data"))
	if err := fs.Delete(ctx, "delete.csv"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, _ := fs.Exists(ctx, "delete.csv")
	if exists {
		t.Error("file should be deleted")
	}
	if err := fs.Delete(ctx, "delete.csv"); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"results/QQQ.csv", "results/QQQ.csv", false},
		{"/results//QQQ.csv", "results/QQQ.csv", false},
		{"results\\QQQ.csv", "results/QQQ.csv", false},
		{"../x", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Clean(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Clean(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
