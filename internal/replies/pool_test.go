package replies

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/benvon/away-reply/internal/storage"
	"go.uber.org/zap"
)

func newBackend(t *testing.T) (*storage.FileBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replies.txt")
	return storage.NewFileBackend(map[string]string{storage.KeyReplies: path}), path
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{"empty", nil, []string{DefaultReply}},
		{"only blanks", []string{"", "   ", "\t"}, []string{DefaultReply}},
		{"trimmed", []string{"  busy  ", "", "back at 5\t"}, []string{"busy", "back at 5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := New(tt.lines).All()
			if len(got) != len(tt.want) {
				t.Fatalf("All() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoad_EmptyFileYieldsFallback(t *testing.T) {
	t.Parallel()
	backend, path := newBackend(t)
	if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Load(context.Background(), backend, storage.KeyReplies, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 1 || p.Pick() != DefaultReply {
		t.Errorf("pool = %q, want single fallback", p.All())
	}
}

func TestLoad_MissingFileIsCreated(t *testing.T) {
	t.Parallel()
	backend, path := newBackend(t)

	p, err := Load(context.Background(), backend, storage.KeyReplies, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 1 || p.All()[0] != DefaultReply {
		t.Errorf("pool = %q", p.All())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("replies file not created: %v", err)
	}
	if string(data) != DefaultReply+"\n" {
		t.Errorf("created file = %q", data)
	}
}

func TestPool_PickUsesEveryLine(t *testing.T) {
	t.Parallel()
	calls := 0
	p := New([]string{"a", "b", "c"}, WithIntn(func(n int) int {
		calls++
		return (calls - 1) % n
	}))

	got := []string{p.Pick(), p.Pick(), p.Pick(), p.Pick()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pick #%d = %q, want %q", i, got[i], want[i])
		}
	}
	if calls != 4 {
		t.Errorf("random source called %d times, want 4", calls)
	}
}

func TestPool_AllIsCopy(t *testing.T) {
	t.Parallel()
	p := New([]string{"x"})
	all := p.All()
	all[0] = "mutated"
	if p.All()[0] != "x" {
		t.Error("All() must return a copy")
	}
}
