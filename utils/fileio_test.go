package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "a.txt")
	if err := WriteTextAtomic(p, "old"); err != nil {
		t.Fatal(err)
	}
	if err := WriteTextAtomic(p, "new content"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("content = %q, want %q", got, "new content")
	}
}

// An interrupted write must leave the previous file complete and no temp
// files behind.
func TestWriteFileAtomicInterruptedKeepsOld(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ckpt.json")
	if err := WriteTextAtomic(p, `{"path":"a","step":1}`); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("interrupted")
	err := WriteFileAtomic(p, func(w io.Writer) error {
		io.WriteString(w, strings.Repeat("x", 4<<20)) // larger than the write buffer
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"path":"a","step":1}` {
		t.Fatalf("target changed after failed write: %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("leftover files: %v", names)
	}
}

func TestAppendText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "h.txt")
	for _, s := range []string{"a\n", "b\n"} {
		if err := AppendText(p, s); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := os.ReadFile(p)
	if string(got) != "a\nb\n" {
		t.Fatalf("content = %q", got)
	}
	if !FileExists(p) || FileExists(p+".missing") {
		t.Fatalf("FileExists wrong")
	}
}
