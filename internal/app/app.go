// Package app wires all Yomiko subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithGateway,
// WithSynthesizer, WithConnect). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yomiko-bot/yomiko/internal/config"
	"github.com/yomiko-bot/yomiko/internal/discord"
	"github.com/yomiko-bot/yomiko/internal/discord/commands"
	"github.com/yomiko-bot/yomiko/internal/health"
	"github.com/yomiko-bot/yomiko/internal/observe"
	"github.com/yomiko-bot/yomiko/internal/reader"
	"github.com/yomiko-bot/yomiko/pkg/voicevox"
)

// shutdownTimeout bounds the HTTP server drain during Shutdown.
const shutdownTimeout = 10 * time.Second

// Gateway is the subset of the Discord bot the application drives.
// Implemented by *discord.Bot.
type Gateway interface {
	Run(ctx context.Context) error
	Close() error
	Router() *discord.CommandRouter
	Session() *discordgo.Session
	SetSink(discord.MessageSink)
	ResolveDisplayName(guildID, userID string) (string, bool)
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	engine  *voicevox.Client
	synth   reader.Synthesizer
	reader  *reader.Reader
	bot     Gateway
	connect commands.ConnectFunc
	httpSrv *http.Server

	promRegistry *prometheus.Registry

	// voiceLabel is resolved from the engine's speaker list at startup.
	voiceLabel string

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGateway injects a Discord gateway instead of opening a real session.
func WithGateway(g Gateway) Option {
	return func(a *App) { a.bot = g }
}

// WithSynthesizer injects a synthesizer instead of the VOICEVOX client.
func WithSynthesizer(s reader.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithConnect injects the voice channel connect function.
func WithConnect(c commands.ConnectFunc) Option {
	return func(a *App) { a.connect = c }
}

// New creates an App by wiring all subsystems together: the VOICEVOX
// client, the reading pipeline, the Discord gateway, the slash commands,
// and the admin HTTP server.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	a.promRegistry = prometheus.NewRegistry()
	obsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "yomiko",
		Registry:    a.promRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return obsShutdown(ctx)
	})

	// ── Synthesis engine ────────────────────────────────────────────────
	a.engine = voicevox.New(cfg.Voicevox.URL)
	if a.synth == nil {
		a.synth = &engineSynthesizer{
			client: a.engine,
			params: voicevox.Params{
				Speaker:    cfg.Voicevox.SpeakerID,
				Speed:      cfg.Voicevox.Speed,
				Pitch:      cfg.Voicevox.Pitch,
				Intonation: cfg.Voicevox.Intonation,
				Volume:     cfg.Voicevox.Volume,
			},
		}
	}
	a.voiceLabel = a.resolveVoiceLabel(ctx)

	// ── Discord gateway ─────────────────────────────────────────────────
	if a.bot == nil {
		bot, err := discord.New(ctx, discord.Config{
			Token:   cfg.Discord.Token,
			GuildID: cfg.Discord.GuildID,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("app: connect discord: %w", err)
		}
		a.bot = bot
		a.closers = append(a.closers, bot.Close)
		if a.connect == nil {
			platform := bot.Platform()
			a.connect = func(ctx context.Context, guildID, channelID string) (reader.Player, error) {
				return platform.Connect(ctx, guildID, channelID)
			}
		}
	}
	if a.connect == nil {
		return nil, errors.New("app: no voice connect function configured")
	}

	// ── Reading pipeline ────────────────────────────────────────────────
	norm := &reader.Normalizer{
		MaxLength: cfg.Reader.MaxMessageLength,
		Resolve:   a.bot.ResolveDisplayName,
	}
	a.reader = reader.New(norm, a.synth,
		reader.WithPollInterval(cfg.Reader.PollInterval),
		reader.WithSynthesisTimeout(cfg.Reader.SynthesisTimeout),
	)
	a.bot.SetSink(a.reader)

	// ── Slash commands ──────────────────────────────────────────────────
	rc := commands.NewReaderCommands(a.reader, a.connect, func() string { return a.voiceLabel })
	rc.Register(a.bot.Router())

	// ── Admin HTTP server ───────────────────────────────────────────────
	a.httpSrv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.adminMux(),
	}

	return a, nil
}

// Reader returns the message reading pipeline.
func (a *App) Reader() *reader.Reader {
	return a.reader
}

// adminMux builds the admin endpoint: health probes plus the Prometheus
// metrics scrape.
func (a *App) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	h := health.New(
		health.EngineChecker(a.engine),
		health.GatewayChecker(func() bool {
			s := a.bot.Session()
			return s != nil && s.State != nil && s.State.User != nil
		}),
	)
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{}))
	return mux
}

// resolveVoiceLabel asks the engine for the configured speaker's display
// name. Falls back to the bare style ID when the engine is unreachable at
// startup.
func (a *App) resolveVoiceLabel(ctx context.Context) string {
	name := fmt.Sprintf("スタイルID %d", a.cfg.Voicevox.SpeakerID)
	speakers, err := a.engine.Speakers(ctx)
	if err != nil {
		slog.Warn("could not list speakers, using style id", "err", err)
	} else if n := voicevox.SpeakerName(speakers, a.cfg.Voicevox.SpeakerID); n != "" {
		name = n
	}
	return fmt.Sprintf("%s（速度: %.1f）", name, a.cfg.Voicevox.Speed)
}

// Run starts the Discord command registration and the admin HTTP server,
// then blocks until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		slog.Info("admin server listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: admin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	slog.Info("app running")
	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects
// the context deadline: if ctx expires before all closers finish, the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Stop every guild's reading session so consumers exit and voice
		// connections drop before the gateway closes.
		if a.reader != nil {
			stopped := 0
			a.reader.Sessions(func(sess *reader.Session) {
				if err := a.reader.Stop(sess); err == nil {
					stopped++
				}
			})
			if stopped > 0 {
				slog.Info("stopped reading sessions", "count", stopped)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// engineSynthesizer adapts the VOICEVOX client to the reader.Synthesizer
// interface with fixed voice parameters.
type engineSynthesizer struct {
	client *voicevox.Client
	params voicevox.Params
}

func (e *engineSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return e.client.Synthesize(ctx, text, e.params)
}
