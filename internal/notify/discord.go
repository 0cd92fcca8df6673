package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/techpm/internal/logging"
)

// discordAPI is the part of *discordgo.Session used for notifications
type discordAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notifications to a single channel through the REST API.
// No gateway connection is opened.
type Discord struct {
	api       discordAPI
	channelID string

	mu      sync.Mutex
	checked bool
	granted bool
}

// NewDiscord creates a Discord capability for a bot token and channel
func NewDiscord(token, channelID string) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Discord{api: session, channelID: channelID}, nil
}

func (d *Discord) Kind() string { return "discord" }

func (d *Discord) Available() bool {
	return d.api != nil && d.channelID != ""
}

// RequestPermission checks once that the bot can see the channel and
// remembers the answer.
func (d *Discord) RequestPermission(ctx context.Context) Permission {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.checked {
		_, err := d.api.Channel(d.channelID, discordgo.WithContext(ctx))
		if err != nil {
			logging.Warn("discord-notify", "channel %s not reachable: %v", d.channelID, err)
		}
		d.granted = err == nil
		d.checked = true
	}
	if d.granted {
		return Granted
	}
	return Denied
}

func (d *Discord) Notify(ctx context.Context, message string) error {
	if _, err := d.api.ChannelMessageSend(d.channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	logging.Debug("discord-notify", "sent: %s", logging.Truncate(message, 80))
	return nil
}
