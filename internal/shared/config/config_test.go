package config

import (
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Log  LogConfig `mapstructure:"log"`
	Name string    `mapstructure:"name"`
}

func TestLoadDecodesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yml")
	body := "name: chronicle\nlog:\n  level: debug\n  max_size: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got sample
	Load(path, &got)
	Read(func() {
		if got.Name != "chronicle" || got.Log.Level != "debug" || got.Log.MaxSize != 5 {
			t.Fatalf("unexpected decode: %+v", got)
		}
	})
}

func TestFindConfigUpward(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "configs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(root, defaultConfigRelPath)
	if err := os.WriteFile(want, []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := findConfigUpward(nested); got != want {
		t.Fatalf("findConfigUpward = %q, want %q", got, want)
	}
}
