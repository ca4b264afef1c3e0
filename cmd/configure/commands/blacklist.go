package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBlacklistCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage users that never get an auto-reply",
	}
	cmd.AddCommand(newBlacklistListCmd(logger))
	cmd.AddCommand(newBlacklistEditCmd(logger, "add", "Add user IDs to the blacklist", (*store.Blacklist).Add))
	cmd.AddCommand(newBlacklistEditCmd(logger, "delete", "Remove user IDs from the blacklist", (*store.Blacklist).Remove))
	return cmd
}

func newBlacklistListCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blacklisted user IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, _ *config.Config, backend storage.Backend) error {
				bl, err := store.LoadBlacklist(ctx, backend, storage.KeyBlacklist, logger)
				if err != nil {
					return err
				}
				printBlacklist(cmd.OutOrStdout(), bl.List())
				return nil
			})
		},
	}
}

type blacklistEdit func(b *store.Blacklist, ctx context.Context, ids ...models.UserID) error

func newBlacklistEditCmd(logger *zap.Logger, use, short string, edit blacklistEdit) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := models.ParseUserIDs(args)
			if err != nil {
				return err
			}
			return withBackend(cmd.Context(), func(ctx context.Context, _ *config.Config, backend storage.Backend) error {
				bl, err := store.LoadBlacklist(ctx, backend, storage.KeyBlacklist, logger)
				if err != nil {
					return err
				}
				if err := edit(bl, ctx, ids...); err != nil {
					return fmt.Errorf("save blacklist: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Blacklist updated.")
				printBlacklist(cmd.OutOrStdout(), bl.List())
				return nil
			})
		},
	}
}

func printBlacklist(out io.Writer, ids []models.UserID) {
	if len(ids) == 0 {
		fmt.Fprintln(out, "Blacklist is empty.")
		return
	}
	fmt.Fprintf(out, "Blacklisted users (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
}
