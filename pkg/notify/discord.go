package notify

import (
	"context"

	"github.com/paylog/asaas-relay/internal/discord"
)

// DiscordNotifier is the primary sink: it posts messages through a Discord
// webhook with retries and client-side rate limiting.
type DiscordNotifier struct {
	client *discord.Client
}

func NewDiscordNotifier(cfg discord.Config) *DiscordNotifier {
	return &DiscordNotifier{client: discord.NewClient(cfg)}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, message string) error {
	return d.client.Send(ctx, message)
}

func (d *DiscordNotifier) Close() error { return nil }
