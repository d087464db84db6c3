// Package reader implements the per-guild message reading pipeline: it
// filters and normalizes inbound text messages into speakable utterances,
// queues them per guild, and drives one sequential consumer loop per guild
// that synthesizes and plays each utterance in FIFO order.
package reader

import (
	"regexp"
	"strings"
)

// Speakable-text placeholders. These match the wording users of Japanese
// reading bots expect, so URLs and mention tokens are spoken naturally.
const (
	urlPlaceholder     = "URL省略"
	memberPlaceholder  = "@メンバー"
	channelPlaceholder = "チャンネル"
	newlineSeparator   = "、"
	truncationSuffix   = "、以下略"
)

var (
	bareURLRe   = regexp.MustCompile(`^https?://\S+$`)
	onlyEmojiRe = regexp.MustCompile(`^(<:\w+:\d+>)+$`)

	urlRe     = regexp.MustCompile(`https?://\S+`)
	emojiRe   = regexp.MustCompile(`<:(\w+):\d+>`)
	mentionRe = regexp.MustCompile(`<@!?(\d+)>`)
	chanRefRe = regexp.MustCompile(`<#(\d+)>`)
)

// Message is the reader's view of an inbound chat message. The Discord layer
// translates discordgo events into this shape so normalization stays pure.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string

	// AuthorBot is true when the author is this bot or any automated account.
	AuthorBot bool

	Content string
}

// SkipReason explains why a message was filtered out instead of queued.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipBotAuthor SkipReason = "bot_author"
	SkipEmpty     SkipReason = "empty"
	SkipCommand   SkipReason = "command_prefix"
	SkipBareURL   SkipReason = "bare_url"
	SkipEmojiOnly SkipReason = "emoji_only"
)

// ResolveFunc looks up the display name for a user mention. Returning
// ok=false falls back to the generic member placeholder; resolution failure
// is never an error.
type ResolveFunc func(guildID, userID string) (name string, ok bool)

// Normalizer turns raw message content into speakable text. It is pure
// string transformation apart from the injected mention resolver, which must
// not block.
type Normalizer struct {
	// MaxLength is the utterance length cap in code points. Longer content
	// is truncated and suffixed with 以下略.
	MaxLength int

	// Resolve maps a mentioned user ID to a display name. May be nil.
	Resolve ResolveFunc
}

// Filter reports whether msg should be skipped and why. A skipped message is
// never queued.
func (n *Normalizer) Filter(msg Message) SkipReason {
	if msg.AuthorBot {
		return SkipBotAuthor
	}

	trimmed := strings.TrimSpace(msg.Content)
	if trimmed == "" {
		return SkipEmpty
	}
	if strings.HasPrefix(msg.Content, "/") ||
		strings.HasPrefix(msg.Content, "!") ||
		strings.HasPrefix(msg.Content, ".") {
		return SkipCommand
	}
	if bareURLRe.MatchString(trimmed) {
		return SkipBareURL
	}
	if onlyEmojiRe.MatchString(trimmed) {
		return SkipEmojiOnly
	}
	return SkipNone
}

// Clean applies the speakability transforms to content, in order: URLs,
// custom emoji, user mentions, channel references, newlines, truncation.
// The pass order matters — URL substitution must run before mention and
// channel substitution so URL query strings are not re-matched.
func (n *Normalizer) Clean(guildID, content string) string {
	content = urlRe.ReplaceAllString(content, urlPlaceholder)
	content = emojiRe.ReplaceAllString(content, "$1")

	content = mentionRe.ReplaceAllStringFunc(content, func(token string) string {
		userID := mentionRe.FindStringSubmatch(token)[1]
		if n.Resolve != nil {
			if name, ok := n.Resolve(guildID, userID); ok && name != "" {
				return "@" + name
			}
		}
		return memberPlaceholder
	})

	content = chanRefRe.ReplaceAllString(content, channelPlaceholder)
	content = strings.ReplaceAll(content, "\n", newlineSeparator)

	if n.MaxLength > 0 {
		runes := []rune(content)
		if len(runes) > n.MaxLength {
			content = string(runes[:n.MaxLength]) + truncationSuffix
		}
	}
	return content
}

// Normalize combines Filter and Clean: it returns the speakable text for msg,
// or a non-empty SkipReason when the message must not be read.
func (n *Normalizer) Normalize(msg Message) (string, SkipReason) {
	if reason := n.Filter(msg); reason != SkipNone {
		return "", reason
	}
	text := n.Clean(msg.GuildID, msg.Content)
	if strings.TrimSpace(text) == "" {
		return "", SkipEmpty
	}
	return text, SkipNone
}
