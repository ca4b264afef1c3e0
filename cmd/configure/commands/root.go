package commands

import (
	"context"
	"fmt"

	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the management CLI. Every command works on the backend
// selected by STORAGE_BACKEND and needs no Telegram credentials.
func NewRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "away-reply-configure",
		Short:         "Management tool for the away-reply userbot",
		Long:          "Inspect and edit the blacklist, reply history and reply texts used by the userbot.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInitCmd(logger))
	root.AddCommand(newBlacklistCmd(logger))
	root.AddCommand(newRepliedCmd(logger))
	root.AddCommand(newRepliesCmd(logger))
	return root
}

// withBackend loads configuration, opens the backend and closes it after fn
func withBackend(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, backend storage.Backend) error) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	backend, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", closeErr)
		}
	}()
	return fn(ctx, cfg, backend)
}
