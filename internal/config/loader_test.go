package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Voicevox.URL != "http://localhost:50021" {
		t.Errorf("Voicevox.URL = %q", cfg.Voicevox.URL)
	}
	if cfg.Voicevox.SpeakerID != 2 {
		t.Errorf("Voicevox.SpeakerID = %d, want 2", cfg.Voicevox.SpeakerID)
	}
	if cfg.Voicevox.Speed != 1.0 || cfg.Voicevox.Intonation != 1.0 || cfg.Voicevox.Volume != 1.0 {
		t.Errorf("voice scales = %+v, want 1.0 defaults", cfg.Voicevox)
	}
	if cfg.Reader.MaxMessageLength != 100 {
		t.Errorf("Reader.MaxMessageLength = %d, want 100", cfg.Reader.MaxMessageLength)
	}
	if cfg.Reader.SynthesisTimeout != 30*time.Second {
		t.Errorf("Reader.SynthesisTimeout = %s", cfg.Reader.SynthesisTimeout)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q", cfg.Server.ListenAddr)
	}
}

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	yml := `
discord:
  token: test-token
  guild_id: "123"
voicevox:
  speaker_id: 8
  speed: 1.2
reader:
  max_message_length: 50
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Discord.Token != "test-token" {
		t.Errorf("Discord.Token = %q", cfg.Discord.Token)
	}
	if cfg.Voicevox.SpeakerID != 8 {
		t.Errorf("Voicevox.SpeakerID = %d, want 8", cfg.Voicevox.SpeakerID)
	}
	if cfg.Voicevox.Speed != 1.2 {
		t.Errorf("Voicevox.Speed = %v, want 1.2", cfg.Voicevox.Speed)
	}
	// Unset fields keep their defaults.
	if cfg.Voicevox.URL != "http://localhost:50021" {
		t.Errorf("Voicevox.URL = %q, want default", cfg.Voicevox.URL)
	}
	if cfg.Reader.MaxMessageLength != 50 {
		t.Errorf("Reader.MaxMessageLength = %d, want 50", cfg.Reader.MaxMessageLength)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("discord:\n  tokne: oops\n"))
	if err == nil {
		t.Fatal("want error for unknown yaml field, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("SPEAKER_ID", "14")
	t.Setenv("VOICE_SPEED", "0.9")
	t.Setenv("MAX_MESSAGE_LENGTH", "80")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("Discord.Token = %q", cfg.Discord.Token)
	}
	if cfg.Voicevox.SpeakerID != 14 {
		t.Errorf("Voicevox.SpeakerID = %d, want 14", cfg.Voicevox.SpeakerID)
	}
	if cfg.Voicevox.Speed != 0.9 {
		t.Errorf("Voicevox.Speed = %v, want 0.9", cfg.Voicevox.Speed)
	}
	if cfg.Reader.MaxMessageLength != 80 {
		t.Errorf("Reader.MaxMessageLength = %d, want 80", cfg.Reader.MaxMessageLength)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("Server.LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("want error when token is missing, got nil")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error %q should mention discord.token", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) { c.Discord.Token = "t" },
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) {},
			wantErr: "discord.token",
		},
		{
			name: "speed out of range",
			mutate: func(c *Config) {
				c.Discord.Token = "t"
				c.Voicevox.Speed = 3.0
			},
			wantErr: "voicevox.speed",
		},
		{
			name: "pitch out of range",
			mutate: func(c *Config) {
				c.Discord.Token = "t"
				c.Voicevox.Pitch = 0.5
			},
			wantErr: "voicevox.pitch",
		},
		{
			name: "non-positive max length",
			mutate: func(c *Config) {
				c.Discord.Token = "t"
				c.Reader.MaxMessageLength = 0
			},
			wantErr: "reader.max_message_length",
		},
		{
			name: "bad log level",
			mutate: func(c *Config) {
				c.Discord.Token = "t"
				c.Server.LogLevel = "verbose"
			},
			wantErr: "server.log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: want error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Voicevox.Speed = 9
	cfg.Reader.MaxMessageLength = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("want error, got nil")
	}
	for _, want := range []string{"discord.token", "voicevox.speed", "reader.max_message_length"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q should contain %q", err, want)
		}
	}
}
