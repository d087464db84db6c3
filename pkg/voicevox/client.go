// Package voicevox provides an HTTP client for the VOICEVOX speech synthesis
// engine (https://voicevox.hiroshiba.jp). Synthesis is a two-step protocol:
// POST /audio_query builds a synthesis query from text, the caller adjusts the
// voice parameter fields on the query, and POST /synthesis renders it to WAV.
//
// The query schema is treated as opaque: it is decoded into a map so unknown
// engine fields round-trip unchanged between the two calls. One Synthesize
// call always makes exactly two HTTP requests; there is no caching and no
// retry — a failed utterance is the caller's to drop.
//
// Typical usage:
//
//	c := voicevox.New("http://localhost:50021",
//	    voicevox.WithTimeout(15*time.Second),
//	)
//	wav, err := c.Synthesize(ctx, "こんにちは", voicevox.Params{Speaker: 2, Speed: 1.0, Intonation: 1.0, Volume: 1.0})
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	audioQueryEndpoint = "/audio_query"
	synthesisEndpoint  = "/synthesis"
	speakersEndpoint   = "/speakers"
	versionEndpoint    = "/version"
)

// Stage identifies which step of the synthesis protocol an error came from.
type Stage string

const (
	StageAudioQuery Stage = "audio_query"
	StageSynthesis  Stage = "synthesis"
)

// StatusError is returned when the engine answers a synthesis step with a
// non-2xx status. It carries the protocol stage so callers can log which half
// of the exchange failed.
type StatusError struct {
	Stage      Stage
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("voicevox: %s returned status %d", e.Stage, e.StatusCode)
}

// Params are the voice parameters applied to every utterance. They map onto
// the scale fields of the engine's audio query.
type Params struct {
	// Speaker is the VOICEVOX style ID (e.g. 2 = 四国めたん ノーマル).
	Speaker int

	// Speed is the speaking rate multiplier (1.0 = default).
	Speed float64

	// Pitch shifts the voice pitch (0.0 = default).
	Pitch float64

	// Intonation scales intonation strength (1.0 = default).
	Intonation float64

	// Volume scales output loudness (1.0 = default).
	Volume float64
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful for injecting
// transports in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to a single VOICEVOX engine instance. It is safe for
// concurrent use; each guild's consumer may synthesize independently.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the engine at baseURL (e.g. "http://localhost:50021").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AudioQuery builds a synthesis query for text with the given speaker style.
// The result is the engine's query object, decoded into a map so that every
// field — known or not — survives the round trip to Synthesize.
func (c *Client) AudioQuery(ctx context.Context, text string, speaker int) (map[string]any, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+audioQueryEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create audio_query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", audioQueryEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Stage: StageAudioQuery, StatusCode: resp.StatusCode}
	}

	var query map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("voicevox: decode audio query: %w", err)
	}
	return query, nil
}

// Render submits a (possibly mutated) audio query to the synthesis endpoint
// and returns the WAV payload.
func (c *Client) Render(ctx context.Context, query map[string]any, speaker int) ([]byte, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("voicevox: marshal audio query: %w", err)
	}

	q := url.Values{}
	q.Set("speaker", strconv.Itoa(speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+synthesisEndpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voicevox: create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: POST %s: %w", synthesisEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Stage: StageSynthesis, StatusCode: resp.StatusCode}
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voicevox: read WAV response: %w", err)
	}
	return wav, nil
}

// Synthesize converts text to WAV audio using the two-step protocol: build
// the query, overwrite its scale fields from params, render. Errors from
// either step abort the utterance; the caller decides whether to continue.
func (c *Client) Synthesize(ctx context.Context, text string, params Params) ([]byte, error) {
	query, err := c.AudioQuery(ctx, text, params.Speaker)
	if err != nil {
		return nil, err
	}

	query["speedScale"] = params.Speed
	query["pitchScale"] = params.Pitch
	query["intonationScale"] = params.Intonation
	query["volumeScale"] = params.Volume

	return c.Render(ctx, query, params.Speaker)
}

// SpeakerStyle is one selectable voice style within a speaker.
type SpeakerStyle struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Speaker is one voice in the engine's catalogue with its styles.
type Speaker struct {
	Name   string         `json:"name"`
	UUID   string         `json:"speaker_uuid"`
	Styles []SpeakerStyle `json:"styles"`
}

// Speakers retrieves the engine's voice catalogue from GET /speakers.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+speakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: create speakers request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: GET %s: %w", speakersEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voicevox: GET %s returned status %d", speakersEndpoint, resp.StatusCode)
	}

	var speakers []Speaker
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("voicevox: decode speakers: %w", err)
	}
	return speakers, nil
}

// SpeakerName returns the display name for a style ID, looked up from the
// engine catalogue. Returns "" if the style is unknown.
func SpeakerName(speakers []Speaker, styleID int) string {
	for _, s := range speakers {
		for _, st := range s.Styles {
			if st.ID == styleID {
				return s.Name + "（" + st.Name + "）"
			}
		}
	}
	return ""
}

// Version reports the engine version from GET /version. Used as a readiness
// probe: a reachable engine answers with its version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+versionEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("voicevox: create version request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voicevox: GET %s: %w", versionEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("voicevox: GET %s returned status %d", versionEndpoint, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("voicevox: read version response: %w", err)
	}
	// The engine returns a JSON string literal ("0.24.1").
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		version = strings.TrimSpace(string(raw))
	}
	return version, nil
}
