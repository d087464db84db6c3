package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/yomiko-bot/yomiko/internal/discord/mock"
	"github.com/yomiko-bot/yomiko/internal/reader"
)

func TestNewCommandRouter(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	if r == nil {
		t.Fatal("NewCommandRouter returned nil")
	}
	if len(r.ApplicationCommands()) != 0 {
		t.Error("new router should have no commands")
	}
}

func TestCommandRouter_ApplicationCommands(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	r.RegisterCommand("join", &discordgo.ApplicationCommand{Name: "join"}, func(*discordgo.Session, *discordgo.InteractionCreate) {})
	r.RegisterCommand("leave", &discordgo.ApplicationCommand{Name: "leave"}, func(*discordgo.Session, *discordgo.InteractionCreate) {})

	cmds := r.ApplicationCommands()
	if len(cmds) != 2 {
		t.Fatalf("ApplicationCommands count = %d, want 2", len(cmds))
	}
	names := map[string]bool{}
	for _, c := range cmds {
		names[c.Name] = true
	}
	if !names["join"] || !names["leave"] {
		t.Errorf("ApplicationCommands = %v, want join and leave", names)
	}
}

func TestRespondEphemeral(t *testing.T) {
	t.Parallel()

	m := &mock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	RespondEphemeral(m, i, "❌ ボイスチャンネルに参加してから実行してください")

	resp := m.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if resp.Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Errorf("response type = %d", resp.Type)
	}
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("response should be ephemeral")
	}
	if resp.Data.Content != "❌ ボイスチャンネルに参加してから実行してください" {
		t.Errorf("content = %q", resp.Data.Content)
	}
}

func TestRespond_Public(t *testing.T) {
	t.Parallel()

	m := &mock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	Respond(m, i, "👋 ボイスチャンネルから退出しました")

	resp := m.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0 {
		t.Error("public response must not be ephemeral")
	}
}

func TestRespondEmbed(t *testing.T) {
	t.Parallel()

	m := &mock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	embed := &discordgo.MessageEmbed{Title: "📚 ヘルプ"}
	RespondEmbed(m, i, embed)

	resp := m.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if len(resp.Data.Embeds) != 1 || resp.Data.Embeds[0].Title != "📚 ヘルプ" {
		t.Errorf("embeds = %v", resp.Data.Embeds)
	}
}

type sinkRecorder struct {
	msgs []reader.Message
}

func (r *sinkRecorder) HandleMessage(m reader.Message) {
	r.msgs = append(r.msgs, m)
}

func newTestSession(t *testing.T) *discordgo.Session {
	t.Helper()
	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: "bot-self", Username: "yomiko"}
	return s
}

func TestBot_HandleMessageCreate(t *testing.T) {
	t.Parallel()

	sink := &sinkRecorder{}
	b := &Bot{router: NewCommandRouter(), sink: sink}
	s := newTestSession(t)

	msg := func(guildID, authorID, content string, bot bool) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID:   guildID,
			ChannelID: "c1",
			Author:    &discordgo.User{ID: authorID, Bot: bot},
			Content:   content,
		}}
	}

	// Own messages never reach the sink.
	b.handleMessageCreate(s, msg("g1", "bot-self", "self", true))
	// DMs have no guild ID.
	b.handleMessageCreate(s, msg("", "u1", "dm", false))
	// Normal guild message.
	b.handleMessageCreate(s, msg("g1", "u1", "こんにちは", false))
	// Other bots are forwarded with the flag set; the pipeline filters them.
	b.handleMessageCreate(s, msg("g1", "u2", "beep", true))

	if len(sink.msgs) != 2 {
		t.Fatalf("sink received %d messages, want 2", len(sink.msgs))
	}
	if sink.msgs[0].Content != "こんにちは" || sink.msgs[0].GuildID != "g1" {
		t.Errorf("first message = %+v", sink.msgs[0])
	}
	if !sink.msgs[1].AuthorBot {
		t.Error("bot author flag not forwarded")
	}
}

func TestBot_ResolveDisplayName(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if err := s.State.GuildAdd(&discordgo.Guild{ID: "g1"}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}

	add := func(userID, nick, globalName, username string) {
		err := s.State.MemberAdd(&discordgo.Member{
			GuildID: "g1",
			Nick:    nick,
			User:    &discordgo.User{ID: userID, GlobalName: globalName, Username: username},
		})
		if err != nil {
			t.Fatalf("MemberAdd: %v", err)
		}
	}
	add("u-nick", "ニック", "Global", "username1")
	add("u-global", "", "Global", "username2")
	add("u-plain", "", "", "username3")

	b := &Bot{session: s}

	tests := []struct {
		userID string
		want   string
	}{
		{"u-nick", "ニック"},
		{"u-global", "Global"},
		{"u-plain", "username3"},
	}
	for _, tt := range tests {
		got, ok := b.ResolveDisplayName("g1", tt.userID)
		if !ok {
			t.Errorf("ResolveDisplayName(%q) not found", tt.userID)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveDisplayName(%q) = %q, want %q", tt.userID, got, tt.want)
		}
	}
}

func TestBot_SetSink(t *testing.T) {
	t.Parallel()

	b := &Bot{router: NewCommandRouter()}
	s := newTestSession(t)

	// Nil sink: message is dropped, no panic.
	b.handleMessageCreate(s, &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID: "g1", ChannelID: "c1",
		Author: &discordgo.User{ID: "u1"}, Content: "x",
	}})

	sink := &sinkRecorder{}
	b.SetSink(sink)
	b.handleMessageCreate(s, &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID: "g1", ChannelID: "c1",
		Author: &discordgo.User{ID: "u1"}, Content: "x",
	}})
	if len(sink.msgs) != 1 {
		t.Fatalf("sink received %d messages, want 1", len(sink.msgs))
	}
}
