package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/yomiko-bot/yomiko/pkg/audio"
)

// Player wraps a discordgo.VoiceConnection as a send-only speech output.
// It decodes synthesized WAV audio to Discord's target format (48 kHz
// stereo), encodes exact Opus frame-sized chunks, and paces them onto the
// voice connection's send channel.
//
// Play calls are serialized; the consumer loop owning a Player calls it one
// utterance at a time.
type Player struct {
	vc        *discordgo.VoiceConnection
	channelID string

	playMu sync.Mutex
	enc    *opusEncoder

	done      chan struct{}
	closeOnce sync.Once

	// Indirections over the voice connection, overridden in tests.
	sendOpus     func(ctx context.Context, opus []byte) error
	setSpeaking  func(bool) error
	disconnectVC func() error
	connReady    func() bool
}

// newPlayer initialises a Player for an already-joined voice channel.
func newPlayer(vc *discordgo.VoiceConnection, channelID string) (*Player, error) {
	enc, err := newOpusEncoder()
	if err != nil {
		return nil, err
	}
	p := &Player{
		vc:           vc,
		channelID:    channelID,
		enc:          enc,
		done:         make(chan struct{}),
		setSpeaking:  vc.Speaking,
		disconnectVC: vc.Disconnect,
	}
	p.sendOpus = func(ctx context.Context, opus []byte) error {
		select {
		case vc.OpusSend <- opus:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return fmt.Errorf("discord: voice connection closed")
		}
	}
	p.connReady = func() bool {
		vc.RLock()
		defer vc.RUnlock()
		return vc.Ready
	}
	return p, nil
}

// Play decodes wav, encodes it to Opus frames, and streams them to Discord.
// It blocks until the whole utterance has been handed to the voice
// connection or ctx is cancelled. The trailing partial frame is padded with
// silence so the utterance never cuts off early.
func (p *Player) Play(ctx context.Context, wav []byte) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	select {
	case <-p.done:
		return fmt.Errorf("discord: voice connection closed")
	default:
	}

	pcm, err := audio.DecodeWAV(wav, opusSampleRate)
	if err != nil {
		return fmt.Errorf("discord: decode utterance: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}
	if rem := len(pcm) % opusFrameBytes; rem != 0 {
		pcm = append(pcm, make([]byte, opusFrameBytes-rem)...)
	}

	if err := p.setSpeaking(true); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", true, "error", err)
	}
	defer func() {
		if err := p.setSpeaking(false); err != nil {
			slog.Warn("discord: speaking notification error", "speaking", false, "error", err)
		}
	}()

	for off := 0; off < len(pcm); off += opusFrameBytes {
		opus, err := p.enc.encode(pcm[off : off+opusFrameBytes])
		if err != nil {
			return err
		}
		if err := p.sendOpus(ctx, opus); err != nil {
			return err
		}
	}
	return nil
}

// Connected reports whether the underlying voice connection is still usable.
func (p *Player) Connected() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return p.connReady()
}

// ChannelID returns the voice channel this player is connected to.
func (p *Player) ChannelID() string {
	return p.channelID
}

// Disconnect tears down the voice connection. Safe to call more than once;
// subsequent calls return nil.
func (p *Player) Disconnect() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.disconnectVC != nil {
			err = p.disconnectVC()
		}
	})
	return err
}
