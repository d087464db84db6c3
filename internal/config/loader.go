package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load builds a validated [Config]: defaults, then the YAML file at path
// (skipped when path is empty), then environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Environment variables are not applied; useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (set DISCORD_TOKEN)"))
	}

	if cfg.Voicevox.URL == "" {
		errs = append(errs, errors.New("voicevox.url is required"))
	}
	if cfg.Voicevox.SpeakerID < 0 {
		errs = append(errs, fmt.Errorf("voicevox.speaker_id %d must not be negative", cfg.Voicevox.SpeakerID))
	}
	if cfg.Voicevox.Speed < 0.5 || cfg.Voicevox.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("voicevox.speed %.2f is out of range [0.5, 2.0]", cfg.Voicevox.Speed))
	}
	if cfg.Voicevox.Pitch < -0.15 || cfg.Voicevox.Pitch > 0.15 {
		errs = append(errs, fmt.Errorf("voicevox.pitch %.2f is out of range [-0.15, 0.15]", cfg.Voicevox.Pitch))
	}

	if cfg.Reader.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("reader.max_message_length %d must be positive", cfg.Reader.MaxMessageLength))
	}
	if cfg.Reader.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("reader.poll_interval %s must be positive", cfg.Reader.PollInterval))
	}
	if cfg.Reader.SynthesisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reader.synthesis_timeout %s must be positive", cfg.Reader.SynthesisTimeout))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	return errors.Join(errs...)
}
