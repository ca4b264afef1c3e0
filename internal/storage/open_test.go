package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, err := Open(ctx, Options{Backend: BackendFile, BlacklistPath: "b.json", RepliedPath: "r.json", RepliesPath: "r.txt"})
	if err != nil {
		t.Fatalf("Open(file): %v", err)
	}
	fb, ok := b.(*FileBackend)
	if !ok {
		t.Fatalf("Open(file) returned %T", b)
	}
	if p, _ := fb.Path(KeyReplied); p != "r.json" {
		t.Errorf("replied path = %q, want r.json", p)
	}

	sb, err := Open(ctx, Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	_ = sb.Close()

	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}
