package commands

import (
	"context"
	"fmt"

	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/replies"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create missing state with safe defaults",
		Long:  "Create the blacklist, reply history and reply texts if they do not exist. Existing valid data is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, cfg *config.Config, backend storage.Backend) error {
				bl, err := store.LoadBlacklist(ctx, backend, storage.KeyBlacklist, logger)
				if err != nil {
					return fmt.Errorf("blacklist: %w", err)
				}
				history, err := store.LoadHistory(ctx, cfg.ReplyPolicy, backend, storage.KeyReplied, cfg.ReplyCooldown, logger)
				if err != nil {
					return fmt.Errorf("reply history: %w", err)
				}
				pool, err := replies.Load(ctx, backend, storage.KeyReplies, logger)
				if err != nil {
					return fmt.Errorf("replies: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Storage backend: %s\n", cfg.StorageBackend)
				fmt.Fprintf(out, "  Blacklist: %d users\n", bl.Len())
				fmt.Fprintf(out, "  Reply history (%s): %d users\n", history.Policy(), history.Len())
				fmt.Fprintf(out, "  Replies: %d\n", pool.Len())
				return nil
			})
		},
	}
}
