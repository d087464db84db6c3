// Package discord provides the Discord bot layer for Yomiko. It owns the
// discordgo.Session lifecycle, forwards guild messages to the reading
// pipeline, and routes slash command interactions to registered handlers.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/yomiko-bot/yomiko/internal/reader"
	discordaudio "github.com/yomiko-bot/yomiko/pkg/audio/discord"
)

// presenceText is shown as the bot's "Listening to ..." activity.
const presenceText = "テキストチャンネル"

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// GuildID, when set, scopes slash command registration to one guild.
	// Guild-scoped commands propagate immediately, which is useful during
	// development; empty registers them globally.
	GuildID string `yaml:"guild_id"`
}

// MessageSink receives every eligible guild message for reading.
type MessageSink interface {
	HandleMessage(reader.Message)
}

// Bot owns the Discord gateway connection. It forwards guild messages to
// the configured sink and routes interactions to registered command
// handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	router    *CommandRouter
	sink      MessageSink
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the gateway
// handlers. The sink may be nil during wiring and set later with
// [Bot.SetSink], but must be set before messages arrive.
func New(_ context.Context, cfg Config, sink MessageSink) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	// MessageContent is a privileged intent; without it every message
	// arrives with empty content and nothing gets read.
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	b := &Bot{
		router:  NewCommandRouter(),
		sink:    sink,
		guildID: cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(b.handleMessageCreate)
	session.AddHandler(b.handleReady)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b.session = session
	b.platform = discordaudio.New(session)
	return b, nil
}

// SetSink sets the message sink. Must be called before the gateway starts
// delivering messages when New was given a nil sink.
func (b *Bot) SetSink(sink MessageSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// Platform returns the voice platform for joining voice channels.
func (b *Bot) Platform() *discordaudio.Platform {
	return b.platform
}

// Session returns the underlying discordgo session. Used by subsystems
// that need direct Discord API access.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// ResolveDisplayName returns the guild display name for a user: the guild
// nickname when set, otherwise the global display name, otherwise the
// username. The second return is false when the member is unknown.
func (b *Bot) ResolveDisplayName(guildID, userID string) (string, bool) {
	s := b.Session()
	member, err := s.State.Member(guildID, userID)
	if err != nil {
		member, err = s.GuildMember(guildID, userID)
		if err != nil {
			return "", false
		}
	}
	if member.Nick != "" {
		return member.Nick, true
	}
	if member.User == nil {
		return "", false
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName, true
	}
	return member.User.Username, true
}

// Run registers slash commands with the Discord API and blocks until ctx
// is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}

// handleReady sets the bot's presence once the gateway session is up.
func (b *Bot) handleReady(s *discordgo.Session, _ *discordgo.Ready) {
	if err := s.UpdateListeningStatus(presenceText); err != nil {
		slog.Warn("discord: failed to update presence", "err", err)
	}
	slog.Info("discord gateway ready", "user", s.State.User.Username)
}

// handleMessageCreate forwards guild messages to the sink. DMs and the
// bot's own messages never reach the pipeline.
func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink == nil {
		return
	}

	sink.HandleMessage(reader.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   m.Content,
	})
}
