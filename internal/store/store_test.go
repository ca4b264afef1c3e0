package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"go.uber.org/zap"
)

func newFileBackend(t *testing.T) (*storage.FileBackend, string) {
	t.Helper()
	dir := t.TempDir()
	return storage.NewFileBackend(map[string]string{
		storage.KeyBlacklist: filepath.Join(dir, "blacklist.json"),
		storage.KeyReplied:   filepath.Join(dir, "replied.json"),
	}), dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// failingBackend wraps a backend and fails writes when writeErr is set
type failingBackend struct {
	storage.Backend
	writeErr error
}

func (f *failingBackend) WriteIDSet(ctx context.Context, key string, ids []int64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Backend.WriteIDSet(ctx, key, ids)
}

func (f *failingBackend) WriteIDMap(ctx context.Context, key string, values map[int64]int64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Backend.WriteIDMap(ctx, key, values)
}

func TestLoadBlacklist_MissingCreatesEmpty(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)

	bl, err := LoadBlacklist(context.Background(), backend, storage.KeyBlacklist, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadBlacklist: %v", err)
	}
	if bl.Len() != 0 {
		t.Errorf("Len = %d, want 0", bl.Len())
	}
	if got := readFile(t, filepath.Join(dir, "blacklist.json")); got != "[]\n" {
		t.Errorf("blacklist.json = %q, want %q", got, "[]\n")
	}
}

func TestLoadBlacklist_CorruptResets(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"json object", `{"123": true}`},
		{"garbage", `not json at all`},
		{"mixed list", `[1, "x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend, dir := newFileBackend(t)
			path := filepath.Join(dir, "blacklist.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}

			bl, err := LoadBlacklist(context.Background(), backend, storage.KeyBlacklist, zap.NewNop())
			if err != nil {
				t.Fatalf("LoadBlacklist: %v", err)
			}
			if bl.Len() != 0 {
				t.Errorf("Len = %d, want 0", bl.Len())
			}
			if got := readFile(t, path); got != "[]\n" {
				t.Errorf("durable copy = %q, want reset to %q", got, "[]\n")
			}
		})
	}
}

func TestLoadBlacklist_ResetWriteFails(t *testing.T) {
	t.Parallel()
	inner, _ := newFileBackend(t)
	backend := &failingBackend{Backend: inner, writeErr: errors.New("disk full")}

	if _, err := LoadBlacklist(context.Background(), backend, storage.KeyBlacklist, zap.NewNop()); err == nil {
		t.Error("expected error when the reset cannot be written")
	}
}

func TestBlacklist_AddRemove(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	ctx := context.Background()
	path := filepath.Join(dir, "blacklist.json")

	bl, err := LoadBlacklist(ctx, backend, storage.KeyBlacklist, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadBlacklist: %v", err)
	}
	initial := readFile(t, path)

	if err := bl.Add(ctx, 42, 7, 42); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !bl.Contains(42) || !bl.Contains(7) || bl.Len() != 2 {
		t.Errorf("after Add: contains(42)=%v contains(7)=%v len=%d", bl.Contains(42), bl.Contains(7), bl.Len())
	}
	if got := readFile(t, path); got != "[\n  7,\n  42\n]\n" {
		t.Errorf("persisted = %q", got)
	}

	if err := bl.Remove(ctx, 42, 7, 1000); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := readFile(t, path); got != initial {
		t.Errorf("after add+remove persisted = %q, want initial %q", got, initial)
	}

	reloaded, err := LoadBlacklist(ctx, backend, storage.KeyBlacklist, zap.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("reloaded Len = %d, want 0", reloaded.Len())
	}
}

func TestBlacklist_ListSorted(t *testing.T) {
	t.Parallel()
	backend, _ := newFileBackend(t)
	ctx := context.Background()
	bl, _ := LoadBlacklist(ctx, backend, storage.KeyBlacklist, zap.NewNop())
	if err := bl.Add(ctx, 9, -3, 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := bl.List()
	want := []models.UserID{-3, 5, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List = %v, want %v", got, want)
		}
	}
}

func TestCooldownHistory_Exhausted(t *testing.T) {
	t.Parallel()
	backend, _ := newFileBackend(t)
	ctx := context.Background()

	h, err := LoadCooldownHistory(ctx, backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCooldownHistory: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	if h.Exhausted(1, now) {
		t.Error("never-replied sender must be eligible")
	}
	if err := h.Record(ctx, 1, now); err != nil {
		t.Fatalf("Record: %v", err)
	}

	tests := []struct {
		name  string
		after time.Duration
		want  bool
	}{
		{"immediately", 0, true},
		{"10s later", 10 * time.Second, true},
		{"just before window", time.Hour - time.Second, true},
		{"at window", time.Hour, false},
		{"after window", 2 * time.Hour, false},
	}
	for _, tt := range tests {
		if got := h.Exhausted(1, now.Add(tt.after)); got != tt.want {
			t.Errorf("%s: Exhausted = %v, want %v", tt.name, got, tt.want)
		}
	}
	if h.Exhausted(2, now) {
		t.Error("another sender must not be affected")
	}
}

func TestCooldownHistory_PersistsAndReloads(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	ctx := context.Background()

	h, _ := LoadCooldownHistory(ctx, backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err := h.Record(ctx, 77, time.Unix(1000, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "replied.json")); got != "{\n  \"77\": 1000\n}\n" {
		t.Errorf("replied.json = %q", got)
	}

	reloaded, err := LoadCooldownHistory(ctx, backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LastReply(77) != 1000 {
		t.Errorf("LastReply = %d, want 1000", reloaded.LastReply(77))
	}

	if err := reloaded.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("Len after reset = %d", reloaded.Len())
	}
	if got := readFile(t, filepath.Join(dir, "replied.json")); got != "{}\n" {
		t.Errorf("replied.json after reset = %q", got)
	}
}

func TestCooldownHistory_LegacyListMigrates(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	path := filepath.Join(dir, "replied.json")
	if err := os.WriteFile(path, []byte(`[5, 3]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := LoadCooldownHistory(context.Background(), backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCooldownHistory: %v", err)
	}
	if h.Len() != 2 || h.LastReply(5) != 0 || h.LastReply(3) != 0 {
		t.Errorf("migrated history len=%d", h.Len())
	}
	if got := readFile(t, path); got != "{\n  \"3\": 0,\n  \"5\": 0\n}\n" {
		t.Errorf("migrated file = %q", got)
	}
	if h.Exhausted(5, time.Now()) {
		t.Error("legacy entries at timestamp 0 must be eligible")
	}
}

func TestCooldownHistory_PartialIsCleaned(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	path := filepath.Join(dir, "replied.json")
	if err := os.WriteFile(path, []byte(`{"1": 50, "oops": 2, "3": [1]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := LoadCooldownHistory(context.Background(), backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCooldownHistory: %v", err)
	}
	if h.Len() != 1 || h.LastReply(1) != 50 {
		t.Errorf("history = len %d, last(1)=%d", h.Len(), h.LastReply(1))
	}
	if got := readFile(t, path); got != "{\n  \"1\": 50\n}\n" {
		t.Errorf("cleaned file = %q", got)
	}
}

func TestCooldownHistory_UnsupportedShapeResets(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	path := filepath.Join(dir, "replied.json")
	if err := os.WriteFile(path, []byte(`"just a string"`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := LoadCooldownHistory(context.Background(), backend, storage.KeyReplied, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCooldownHistory: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
	if got := readFile(t, path); got != "{}\n" {
		t.Errorf("file = %q, want reset", got)
	}
}

func TestOneShotHistory(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	ctx := context.Background()

	h, err := LoadOneShotHistory(ctx, backend, storage.KeyReplied, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadOneShotHistory: %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "replied.json")); got != "[]\n" {
		t.Errorf("initial file = %q", got)
	}

	now := time.Unix(1000, 0)
	if h.Exhausted(9, now) {
		t.Error("new sender must be eligible")
	}
	if err := h.Record(ctx, 9, now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !h.Exhausted(9, now.Add(10*365*24*time.Hour)) {
		t.Error("one-shot history must never expire")
	}

	reloaded, _ := LoadOneShotHistory(ctx, backend, storage.KeyReplied, zap.NewNop())
	if !reloaded.HasReplied(9) {
		t.Error("reloaded history lost sender 9")
	}
	if err := reloaded.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reloaded.HasReplied(9) {
		t.Error("Reset must clear the set")
	}
}

func TestLoadHistory_Policy(t *testing.T) {
	t.Parallel()
	backend, _ := newFileBackend(t)
	ctx := context.Background()

	tests := []struct {
		policy  string
		want    string
		wantErr bool
	}{
		{PolicyCooldown, PolicyCooldown, false},
		{"", PolicyCooldown, false},
		{PolicyOneShot, PolicyOneShot, false},
		{"forever", "", true},
	}
	for _, tt := range tests {
		h, err := LoadHistory(ctx, tt.policy, backend, storage.KeyReplied, time.Hour, zap.NewNop())
		if tt.wantErr {
			if err == nil {
				t.Errorf("LoadHistory(%q) expected error", tt.policy)
			}
			continue
		}
		if err != nil {
			t.Errorf("LoadHistory(%q): %v", tt.policy, err)
			continue
		}
		if h.Policy() != tt.want {
			t.Errorf("LoadHistory(%q).Policy() = %q, want %q", tt.policy, h.Policy(), tt.want)
		}
	}
}

func TestCooldownHistory_SubSecondCooldown(t *testing.T) {
	t.Parallel()
	backend, _ := newFileBackend(t)
	ctx := context.Background()

	h, err := LoadCooldownHistory(ctx, backend, storage.KeyReplied, 1500*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCooldownHistory: %v", err)
	}
	now := time.Unix(1000, 0)
	if err := h.Record(ctx, 1, now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !h.Exhausted(1, now.Add(time.Second)) {
		t.Error("sender must stay exhausted inside a 1.5s window")
	}
	if h.Exhausted(1, now.Add(2*time.Second)) {
		t.Error("sender must be eligible once the 1.5s window elapsed")
	}
}

func TestOneShotHistory_MigratesCooldownMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		want []models.UserID
	}{
		{name: "cooldown map", file: `{"5": 1700000000, "3": 0}`, want: []models.UserID{3, 5}},
		{name: "partial cooldown map", file: `{"5": 1700000000, "x": "y"}`, want: []models.UserID{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend, dir := newFileBackend(t)
			path := filepath.Join(dir, "replied.json")
			if err := os.WriteFile(path, []byte(tt.file), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}

			h, err := LoadOneShotHistory(context.Background(), backend, storage.KeyReplied, zap.NewNop())
			if err != nil {
				t.Fatalf("LoadOneShotHistory: %v", err)
			}
			if h.Len() != len(tt.want) {
				t.Fatalf("Len() = %d, want %d", h.Len(), len(tt.want))
			}
			for _, id := range tt.want {
				if !h.HasReplied(id) {
					t.Errorf("sender %d lost in migration", id)
				}
			}

			reloaded, err := backend.ReadIDSet(context.Background(), storage.KeyReplied)
			if err != nil {
				t.Fatalf("migrated file is not a set: %v", err)
			}
			if len(reloaded) != len(tt.want) {
				t.Errorf("persisted set = %v, want %v", reloaded, tt.want)
			}
		})
	}
}

func TestOneShotHistory_UnsupportedShapeResets(t *testing.T) {
	t.Parallel()
	backend, dir := newFileBackend(t)
	path := filepath.Join(dir, "replied.json")
	if err := os.WriteFile(path, []byte(`"nope"`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := LoadOneShotHistory(context.Background(), backend, storage.KeyReplied, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadOneShotHistory: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	if got := readFile(t, path); got != "[]\n" {
		t.Errorf("reset file = %q", got)
	}
}
