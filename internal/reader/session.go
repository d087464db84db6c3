package reader

import (
	"context"
	"sync"
)

// Player is the audio playback capability for one guild's voice connection.
// Play blocks until the utterance has been fully submitted or ctx is
// cancelled. The reader owns the Player exclusively between Start and Stop.
type Player interface {
	// Play decodes wav and plays it into the voice channel.
	Play(ctx context.Context, wav []byte) error

	// Connected reports whether the voice connection is still live.
	Connected() bool

	// ChannelID returns the voice channel this player is connected to.
	ChannelID() string

	// Disconnect tears down the voice connection. Safe to call twice.
	Disconnect() error
}

// Session holds the reading state for one guild: the bound text channel, the
// reading flag, the pending-utterance queue, and the exclusive voice
// connection. Created lazily by [Registry.Get]; lives for the process
// lifetime.
type Session struct {
	guildID string
	queue   *Queue

	mu              sync.Mutex
	boundChannelID  string
	reading         bool
	consumerRunning bool
	generation      uint64
	player          Player
	cancel          context.CancelFunc
}

func newSession(guildID string) *Session {
	return &Session{
		guildID: guildID,
		queue:   NewQueue(),
	}
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() string {
	return s.guildID
}

// Queue returns the guild's pending-utterance queue.
func (s *Session) Queue() *Queue {
	return s.queue
}

// BoundChannel returns the text channel whose messages are read, or "".
func (s *Session) BoundChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundChannelID
}

// BindChannel sets the text channel whose messages are read, replacing any
// prior binding.
func (s *Session) BindChannel(channelID string) {
	s.mu.Lock()
	s.boundChannelID = channelID
	s.mu.Unlock()
}

// Reading reports whether inbound messages are currently queued and spoken.
func (s *Session) Reading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// Connected reports whether the session owns a live voice connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	p := s.player
	s.mu.Unlock()
	return p != nil && p.Connected()
}

// VoiceChannelID returns the connected voice channel ID, or "" when the
// session is not connected.
func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	p := s.player
	s.mu.Unlock()
	if p == nil {
		return ""
	}
	return p.ChannelID()
}

// currentPlayer returns the session's player without the liveness check.
func (s *Session) currentPlayer() Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

// Registry owns all guild sessions for the process. Sessions are created on
// first reference and never destroyed — a leave only resets the session's
// state, keeping the channel binding for the next join.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for guildID, creating it on first use.
func (r *Registry) Get(guildID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s = newSession(guildID)
	r.sessions[guildID] = s
	return s
}

// Len returns the number of known guild sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Range calls fn for every known session. fn runs outside the registry
// lock, so it may call back into the registry or the sessions.
func (r *Registry) Range(fn func(*Session)) {
	r.mu.RLock()
	snap := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snap = append(snap, s)
	}
	r.mu.RUnlock()

	for _, s := range snap {
		fn(s)
	}
}
