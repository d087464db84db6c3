// Package discord provides voice playback into Discord voice channels via
// the bwmarrin/discordgo library. It bridges synthesized WAV speech onto
// Discord's Opus-based voice transport.
//
// The platform requires an active *discordgo.Session (owned by the bot
// layer). Each call to [Platform.Connect] joins the specified voice channel
// and returns a [Player] that streams one utterance at a time.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Platform joins Discord voice channels for any guild the bot serves.
// It requires an active *discordgo.Session (owned by the bot layer).
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
}

// New creates a new Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Connect joins the voice channel identified by channelID and returns an
// active [Player]. The bot joins unmuted and deafened: it only sends audio,
// it never listens. The supplied ctx governs the connection-setup phase
// only; once the Player is returned it lives until [Player.Disconnect].
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (*Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	player, err := newPlayer(vc, channelID)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create player: %w", err)
	}
	return player, nil
}
