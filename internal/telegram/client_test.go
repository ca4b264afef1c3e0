package telegram

import (
	"strings"
	"testing"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSelfFields_SanitizesUsername(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)

	zap.New(core).Info("telegram_authorized", selfFields(&tg.User{ID: 42, Username: "owner\nforged_entry" + strings.Repeat("x", 200)})...)

	entry := logs.All()[0].ContextMap()
	if entry["user_id"] != int64(42) {
		t.Errorf("user_id = %v", entry["user_id"])
	}
	username, _ := entry["username"].(string)
	if strings.Contains(username, "\n") {
		t.Errorf("username kept a newline: %q", username)
	}
	if !strings.HasPrefix(username, "owner forged_entry") || !strings.HasSuffix(username, "...") {
		t.Errorf("username = %q, want sanitized and truncated", username)
	}
}
