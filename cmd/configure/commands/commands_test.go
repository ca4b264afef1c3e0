package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type paths struct {
	blacklist string
	replied   string
	replies   string
}

// setupFiles points the file backend at a temp dir.
// t.Setenv rules out t.Parallel.
func setupFiles(t *testing.T) paths {
	t.Helper()
	dir := t.TempDir()
	p := paths{
		blacklist: filepath.Join(dir, "blacklist.json"),
		replied:   filepath.Join(dir, "replied.json"),
		replies:   filepath.Join(dir, "replies.txt"),
	}
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("REPLY_POLICY", "cooldown")
	t.Setenv("BLACKLIST_PATH", p.blacklist)
	t.Setenv("REPLIED_PATH", p.replied)
	t.Setenv("REPLIES_PATH", p.replies)
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(zap.NewNop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestInitCreatesDefaults(t *testing.T) {
	p := setupFiles(t)

	out, err := execute(t, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Blacklist: 0 users") || !strings.Contains(out, "Replies: 1") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := readFile(t, p.blacklist); got != "[]\n" {
		t.Errorf("blacklist file = %q", got)
	}
	if got := readFile(t, p.replied); got != "{}\n" {
		t.Errorf("replied file = %q", got)
	}
	if got := readFile(t, p.replies); got != "I'm currently away. I'll get back to you soon.\n" {
		t.Errorf("replies file = %q", got)
	}
}

func TestBlacklistAddDelete(t *testing.T) {
	p := setupFiles(t)

	out, err := execute(t, "blacklist", "add", "111", "222", "111")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Blacklisted users (2)") {
		t.Errorf("add output:\n%s", out)
	}

	out, err = execute(t, "blacklist", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "  111\n  222\n") {
		t.Errorf("list output:\n%s", out)
	}

	if _, err := execute(t, "blacklist", "delete", "111", "222"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := readFile(t, p.blacklist); got != "[]\n" {
		t.Errorf("blacklist file after delete = %q, want empty list", got)
	}
}

func TestBlacklistRejectsBadIDs(t *testing.T) {
	p := setupFiles(t)

	if _, err := execute(t, "blacklist", "add", "abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, err := os.Stat(p.blacklist); !os.IsNotExist(err) {
		t.Errorf("blacklist file should not be touched on bad input, stat err = %v", err)
	}
	if _, err := execute(t, "blacklist", "add"); err == nil {
		t.Fatal("expected error without ids")
	}
}

func TestRepliedReset(t *testing.T) {
	p := setupFiles(t)
	if err := os.WriteFile(p.replied, []byte(`{"5": 100, "6": 200}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "replied", "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "2 entries cleared") {
		t.Errorf("reset output:\n%s", out)
	}
	if got := readFile(t, p.replied); got != "{}\n" {
		t.Errorf("replied file = %q", got)
	}
}

func TestRepliesList(t *testing.T) {
	p := setupFiles(t)
	if err := os.WriteFile(p.replies, []byte("Back soon\n\n  Out of office  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "replies", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "Replies (2):\n  1. Back soon\n  2. Out of office\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestInvalidConfig(t *testing.T) {
	setupFiles(t)
	t.Setenv("REPLY_POLICY", "forever")

	if _, err := execute(t, "blacklist", "list"); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("expected config error, got %v", err)
	}
}
