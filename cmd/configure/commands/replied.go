package commands

import (
	"context"
	"fmt"

	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRepliedCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replied",
		Short: "Manage the reply history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget every sender that already got an auto-reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, cfg *config.Config, backend storage.Backend) error {
				history, err := store.LoadHistory(ctx, cfg.ReplyPolicy, backend, storage.KeyReplied, cfg.ReplyCooldown, logger)
				if err != nil {
					return err
				}
				cleared := history.Len()
				if err := history.Reset(ctx); err != nil {
					return fmt.Errorf("reset reply history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reply history (%s) reset, %d entries cleared.\n", history.Policy(), cleared)
				return nil
			})
		},
	})
	return cmd
}
