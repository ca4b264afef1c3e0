// Package telegram connects the account over MTProto and feeds updates to the engine.
package telegram

import (
	"context"
	"fmt"
	"io"
	"os"

	logpkg "github.com/benvon/away-reply/internal/logger"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Options configures the MTProto client
type Options struct {
	APIID       int
	APIHash     string
	SessionPath string
	Phone       string
	Password    string
	Sources     Sources

	// Prompt streams for interactive login; default to stdin and stdout
	Input  io.Reader
	Output io.Writer
}

// Client wraps a gotd client with gap-aware update handling
type Client struct {
	client *telegram.Client
	gaps   *updates.Manager
	router *router
	auth   *terminalAuth
	logger *zap.Logger
}

// New builds the client. Nothing connects until Run.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &router{sources: opts.Sources, logger: logger}
	dispatcher := tg.NewUpdateDispatcher()
	r.register(dispatcher)

	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  logger.Named("gaps"),
	})

	client := telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: opts.SessionPath},
		UpdateHandler:  gaps,
		Logger:         logger.Named("mtproto"),
	})

	return &Client{
		client: client,
		gaps:   gaps,
		router: r,
		auth:   newTerminalAuth(opts.Phone, opts.Password, opts.Input, opts.Output),
		logger: logger,
	}
}

// Sender returns a reply sender backed by this client's connection
func (c *Client) Sender() *Sender {
	return NewSender(c.client.API())
}

// Run logs in if needed and streams updates into events until ctx is done
func (c *Client) Run(ctx context.Context, events Events) error {
	c.router.events = events

	return c.client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(c.auth, auth.SendCodeOptions{})
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("telegram auth: %w", err)
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("telegram self: %w", err)
		}
		c.logger.Info("telegram_authorized", selfFields(self)...)

		return c.gaps.Run(ctx, c.client.API(), self.ID, updates.AuthOptions{
			IsBot: self.Bot,
			OnStart: func(ctx context.Context) {
				c.logger.Info("listening_for_updates",
					zap.Bool("outgoing_activity", c.router.sources.Outgoing),
					zap.Bool("read_activity", c.router.sources.Read),
				)
			},
		})
	})
}

func selfFields(self *tg.User) []zap.Field {
	return []zap.Field{
		zap.Int64("user_id", self.ID),
		zap.String("username", logpkg.SanitizeUsername(self.Username)),
	}
}
