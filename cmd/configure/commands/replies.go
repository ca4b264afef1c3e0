package commands

import (
	"context"
	"fmt"

	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/replies"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRepliesCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replies",
		Short: "Inspect the auto-reply texts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the reply texts one is picked from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, _ *config.Config, backend storage.Backend) error {
				pool, err := replies.Load(ctx, backend, storage.KeyReplies, logger)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Replies (%d):\n", pool.Len())
				for i, line := range pool.All() {
					fmt.Fprintf(out, "  %d. %s\n", i+1, line)
				}
				return nil
			})
		},
	})
	return cmd
}
