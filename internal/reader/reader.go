package reader

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yomiko-bot/yomiko/internal/observe"
	"github.com/yomiko-bot/yomiko/pkg/voicevox"
)

const (
	// defaultPollInterval bounds how long an idle consumer sleeps between
	// queue checks when no wake signal arrives.
	defaultPollInterval = 500 * time.Millisecond

	// defaultSynthesisTimeout caps one two-step synthesis exchange.
	defaultSynthesisTimeout = 30 * time.Second
)

// ErrAlreadyReading is returned by Start when the guild's consumer loop is
// already running.
var ErrAlreadyReading = errors.New("reader: already reading in this guild")

// ErrNotReading is returned by Stop when the guild has no active reading
// session.
var ErrNotReading = errors.New("reader: not reading in this guild")

// Synthesizer converts speakable text to WAV audio. Implemented by the
// VOICEVOX client bound to the configured voice parameters.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Option is a functional option for configuring a Reader.
type Option func(*Reader)

// WithPollInterval sets the idle-queue poll fallback interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithSynthesisTimeout caps the synthesis exchange per utterance.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.synthTimeout = d
		}
	}
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// Reader drives the message-to-speech pipeline. The Discord layer feeds
// inbound messages to HandleMessage; command handlers call Start and Stop.
// Each guild gets at most one consumer goroutine, and guilds never block
// each other.
type Reader struct {
	registry *Registry
	norm     *Normalizer
	synth    Synthesizer

	metrics      *observe.Metrics
	pollInterval time.Duration
	synthTimeout time.Duration
}

// New creates a Reader with the given normalizer and synthesizer.
func New(norm *Normalizer, synth Synthesizer, opts ...Option) *Reader {
	r := &Reader{
		registry:     NewRegistry(),
		norm:         norm,
		synth:        synth,
		metrics:      observe.DefaultMetrics(),
		pollInterval: defaultPollInterval,
		synthTimeout: defaultSynthesisTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Session returns the guild's session, creating it on first use.
func (r *Reader) Session(guildID string) *Session {
	return r.registry.Get(guildID)
}

// Sessions calls fn for every known guild session.
func (r *Reader) Sessions(fn func(*Session)) {
	r.registry.Range(fn)
}

// HandleMessage is the ingestion path, called once per inbound guild
// message. It only validates, normalizes, and enqueues — it never waits on
// synthesis or playback.
func (r *Reader) HandleMessage(msg Message) {
	ctx := context.Background()

	sess := r.registry.Get(msg.GuildID)
	if sess.BoundChannel() != msg.ChannelID || !sess.Reading() {
		return
	}

	text, reason := r.norm.Normalize(msg)
	if reason != SkipNone {
		observe.Count(ctx, r.metrics.MessagesSkipped,
			observe.GuildAttr(msg.GuildID),
			attribute.String("reason", string(reason)),
		)
		return
	}

	sess.Queue().Push(Utterance{
		Text:       text,
		ChannelID:  msg.ChannelID,
		EnqueuedAt: time.Now(),
	})
	observe.Count(ctx, r.metrics.MessagesEnqueued, observe.GuildAttr(msg.GuildID))
	observe.Logger(ctx).Debug("reader: enqueued",
		"guild_id", msg.GuildID,
		"queue_len", sess.Queue().Len(),
	)
}

// Start takes ownership of player, enables reading, and spawns the guild's
// consumer loop. Returns ErrAlreadyReading when a consumer is already
// running — repeated joins never spawn a second loop.
func (r *Reader) Start(sess *Session, player Player) error {
	sess.mu.Lock()
	if sess.consumerRunning {
		sess.mu.Unlock()
		return ErrAlreadyReading
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess.player = player
	sess.reading = true
	sess.consumerRunning = true
	sess.cancel = cancel
	sess.generation++
	gen := sess.generation
	sess.mu.Unlock()

	observe.Gauge(ctx, r.metrics.ActiveReaders, 1)
	go r.consume(ctx, sess, gen)

	return nil
}

// Stop disables reading, clears the queue, cancels the consumer (which
// interrupts any in-flight playback), and releases the voice connection.
func (r *Reader) Stop(sess *Session) error {
	sess.mu.Lock()
	if !sess.consumerRunning && sess.player == nil {
		sess.mu.Unlock()
		return ErrNotReading
	}
	sess.reading = false
	sess.consumerRunning = false
	cancel := sess.cancel
	player := sess.player
	sess.cancel = nil
	sess.player = nil
	sess.mu.Unlock()

	dropped := sess.queue.Clear()
	if cancel != nil {
		cancel()
	}

	var err error
	if player != nil {
		err = player.Disconnect()
	}

	observe.Logger(context.Background()).Info("reader: stopped",
		"guild_id", sess.guildID,
		"dropped", dropped,
	)
	return err
}

// consume is the per-guild sequential loop: wait for an utterance, verify
// the voice connection, synthesize, play, repeat. One utterance's failure is
// logged and dropped; only an explicit stop or connection loss ends the loop.
func (r *Reader) consume(ctx context.Context, sess *Session, gen uint64) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	defer r.finishConsumer(sess, gen)

	for {
		if ctx.Err() != nil || !sess.Reading() {
			return
		}

		u, ok := sess.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-sess.queue.Wake():
			case <-ticker.C:
			}
			continue
		}

		player := sess.currentPlayer()
		if player == nil || !player.Connected() {
			observe.Logger(ctx).Warn("reader: voice connection lost, stopping",
				"guild_id", sess.guildID,
			)
			return
		}

		r.speak(ctx, sess.guildID, u, player)
	}
}

// finishConsumer resets the session when its consumer exits, unless a newer
// consumer generation has already taken over after a stop/start cycle.
func (r *Reader) finishConsumer(sess *Session, gen uint64) {
	observe.Gauge(context.Background(), r.metrics.ActiveReaders, -1)

	sess.mu.Lock()
	stale := sess.generation != gen
	if !stale {
		sess.consumerRunning = false
		sess.reading = false
		sess.player = nil
		if sess.cancel != nil {
			sess.cancel()
			sess.cancel = nil
		}
	}
	sess.mu.Unlock()

	if !stale {
		sess.queue.Clear()
	}
}

// speak synthesizes and plays one utterance. Failures drop the utterance and
// let the loop continue.
func (r *Reader) speak(ctx context.Context, guildID string, u Utterance, player Player) {
	ctx, span := observe.StartSpan(ctx, "reader.speak")
	defer span.End()
	span.SetAttributes(
		attribute.String("guild_id", guildID),
		attribute.Int("text_len", len([]rune(u.Text))),
	)
	log := observe.Logger(ctx)

	synthCtx, cancel := context.WithTimeout(ctx, r.synthTimeout)
	start := time.Now()
	wav, err := r.synth.Synthesize(synthCtx, u.Text)
	cancel()
	observe.Record(ctx, r.metrics.SynthesisDuration, time.Since(start).Seconds())

	if err != nil {
		stage := "transport"
		var statusErr *voicevox.StatusError
		if errors.As(err, &statusErr) {
			stage = string(statusErr.Stage)
		}
		observe.Count(ctx, r.metrics.SynthesisErrors, attribute.String("stage", stage))
		span.SetStatus(codes.Error, err.Error())
		log.Error("reader: synthesis failed, dropping utterance",
			"guild_id", guildID,
			"stage", stage,
			"err", err,
		)
		return
	}

	start = time.Now()
	if err := player.Play(ctx, wav); err != nil {
		observe.Count(ctx, r.metrics.PlaybackErrors, observe.GuildAttr(guildID))
		span.SetStatus(codes.Error, err.Error())
		log.Error("reader: playback failed, dropping utterance",
			"guild_id", guildID,
			"err", err,
		)
		return
	}
	observe.Record(ctx, r.metrics.PlaybackDuration, time.Since(start).Seconds())
	observe.Count(ctx, r.metrics.UtterancesSpoken, observe.GuildAttr(guildID))
}
