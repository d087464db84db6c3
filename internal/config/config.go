// Package config provides the configuration schema and loader for the
// Yomiko reading bot. Values come from an optional YAML file overridden by
// environment variables.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for Yomiko.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Voicevox VoicevoxConfig `yaml:"voicevox"`
	Reader   ReaderConfig   `yaml:"reader"`
	Server   ServerConfig   `yaml:"server"`
}

// DiscordConfig holds the bot credentials and command scope.
type DiscordConfig struct {
	// Token is the Discord bot token. Required.
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// GuildID scopes slash command registration to one guild when set.
	// Guild commands propagate immediately; global commands can take up to
	// an hour.
	GuildID string `yaml:"guild_id" env:"GUILD_ID"`
}

// VoicevoxConfig holds the synthesis engine endpoint and voice tuning.
type VoicevoxConfig struct {
	// URL is the VOICEVOX engine base URL.
	URL string `yaml:"url" env:"VOICEVOX_URL"`

	// SpeakerID selects the voice style (2 is 四国めたん ノーマル).
	SpeakerID int `yaml:"speaker_id" env:"SPEAKER_ID"`

	Speed      float64 `yaml:"speed" env:"VOICE_SPEED"`
	Pitch      float64 `yaml:"pitch" env:"VOICE_PITCH"`
	Intonation float64 `yaml:"intonation" env:"VOICE_INTONATION"`
	Volume     float64 `yaml:"volume" env:"VOICE_VOLUME"`
}

// ReaderConfig tunes the message reading pipeline.
type ReaderConfig struct {
	// MaxMessageLength is the rune count beyond which messages are
	// truncated before synthesis.
	MaxMessageLength int `yaml:"max_message_length" env:"MAX_MESSAGE_LENGTH"`

	// PollInterval is the queue poll fallback interval for the per-guild
	// consumer.
	PollInterval time.Duration `yaml:"poll_interval" env:"READER_POLL_INTERVAL"`

	// SynthesisTimeout bounds a single synthesis round-trip.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" env:"SYNTHESIS_TIMEOUT"`
}

// ServerConfig holds the admin HTTP endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for health and metrics endpoints.
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns a Config populated with the built-in defaults. Everything
// except the Discord token has a usable default for a local VOICEVOX setup.
func Default() *Config {
	return &Config{
		Voicevox: VoicevoxConfig{
			URL:        "http://localhost:50021",
			SpeakerID:  2,
			Speed:      1.0,
			Pitch:      0.0,
			Intonation: 1.0,
			Volume:     1.0,
		},
		Reader: ReaderConfig{
			MaxMessageLength: 100,
			PollInterval:     500 * time.Millisecond,
			SynthesisTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
	}
}
