package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/yomiko-bot/yomiko/internal/reader"
)

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("wav"), nil
}

type stubPlayer struct {
	connected bool
	channelID string
}

func (p *stubPlayer) Play(context.Context, []byte) error { return nil }
func (p *stubPlayer) Connected() bool                    { return p.connected }
func (p *stubPlayer) ChannelID() string                  { return p.channelID }
func (p *stubPlayer) Disconnect() error {
	p.connected = false
	return nil
}

func newTestCommands() (*ReaderCommands, *reader.Reader) {
	r := reader.New(&reader.Normalizer{MaxLength: 100}, stubSynth{})
	connect := func(_ context.Context, _, channelID string) (reader.Player, error) {
		return &stubPlayer{connected: true, channelID: channelID}, nil
	}
	rc := NewReaderCommands(r, connect, func() string { return "四国めたん（速度: 1.0）" })
	return rc, r
}

func TestDefinitions(t *testing.T) {
	t.Parallel()

	rc, _ := newTestCommands()
	defs := rc.Definitions()

	expected := []string{"join", "leave", "setchannel", "status", "help"}
	if len(defs) != len(expected) {
		t.Fatalf("Definitions count = %d, want %d", len(defs), len(expected))
	}
	for i, name := range expected {
		if defs[i].Name != name {
			t.Errorf("definition[%d] = %q, want %q", i, defs[i].Name, name)
		}
		if defs[i].Description == "" {
			t.Errorf("definition %q has no description", name)
		}
	}

	// setchannel takes a single required text-channel option.
	setOpts := defs[2].Options
	if len(setOpts) != 1 {
		t.Fatalf("setchannel options count = %d, want 1", len(setOpts))
	}
	opt := setOpts[0]
	if opt.Name != "channel" {
		t.Errorf("setchannel option name = %q, want %q", opt.Name, "channel")
	}
	if opt.Type != discordgo.ApplicationCommandOptionChannel {
		t.Errorf("setchannel option type = %d, want Channel", opt.Type)
	}
	if !opt.Required {
		t.Error("setchannel channel option should be required")
	}
	if len(opt.ChannelTypes) != 1 || opt.ChannelTypes[0] != discordgo.ChannelTypeGuildText {
		t.Errorf("setchannel ChannelTypes = %v, want [GuildText]", opt.ChannelTypes)
	}
}

func TestStatusEmbed_Idle(t *testing.T) {
	t.Parallel()

	rc, r := newTestCommands()
	sess := r.Session("g1")

	embed := rc.statusEmbed(nil, sess)
	if embed.Title != "📊 ボットステータス" {
		t.Errorf("Title = %q", embed.Title)
	}
	if len(embed.Fields) != 5 {
		t.Fatalf("Fields count = %d, want 5", len(embed.Fields))
	}

	wantValues := []string{"未接続", "停止中", "未設定", "0 件", "四国めたん（速度: 1.0）"}
	for i, want := range wantValues {
		if embed.Fields[i].Value != want {
			t.Errorf("field %q = %q, want %q", embed.Fields[i].Name, embed.Fields[i].Value, want)
		}
	}
}

func TestStatusEmbed_Reading(t *testing.T) {
	t.Parallel()

	rc, r := newTestCommands()
	sess := r.Session("g1")
	sess.BindChannel("c9")

	player := &stubPlayer{connected: true, channelID: "vc1"}
	if err := r.Start(sess, player); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop(sess) })

	embed := rc.statusEmbed(nil, sess)
	if got := embed.Fields[0].Value; got != "接続中: vc1" {
		t.Errorf("VC field = %q, want %q", got, "接続中: vc1")
	}
	if got := embed.Fields[1].Value; got != "読み上げ中" {
		t.Errorf("reading field = %q, want %q", got, "読み上げ中")
	}
	if got := embed.Fields[2].Value; got != "<#c9>" {
		t.Errorf("channel field = %q, want %q", got, "<#c9>")
	}
}

func TestHelpEmbed(t *testing.T) {
	t.Parallel()

	embed := helpEmbed()
	if embed.Title != "📚 ヘルプ" {
		t.Errorf("Title = %q", embed.Title)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("Fields count = %d, want 2", len(embed.Fields))
	}

	for _, cmd := range []string{"/join", "/leave", "/setchannel", "/status", "/help"} {
		if !strings.Contains(embed.Fields[0].Value, cmd) {
			t.Errorf("command list missing %q", cmd)
		}
	}
	if !strings.Contains(embed.Fields[1].Value, "/setchannel") {
		t.Error("usage section should mention /setchannel")
	}
}

func TestInteractionUser(t *testing.T) {
	t.Parallel()

	member := &discordgo.User{ID: "u1"}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: member},
	}}
	if got := interactionUser(i); got != member {
		t.Errorf("interactionUser = %v, want member user", got)
	}

	dm := &discordgo.User{ID: "u2"}
	i = &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: dm}}
	if got := interactionUser(i); got != dm {
		t.Errorf("interactionUser = %v, want DM user", got)
	}
}
