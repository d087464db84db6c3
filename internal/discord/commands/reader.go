// Package commands implements the reading bot's slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/yomiko-bot/yomiko/internal/discord"
	"github.com/yomiko-bot/yomiko/internal/reader"
)

// connectTimeout bounds the voice channel join during /join.
const connectTimeout = 10 * time.Second

// Embed colors matching the Discord palette.
const (
	colorBlue  = 0x3498DB
	colorGreen = 0x2ECC71
)

// ConnectFunc joins a voice channel and returns a playback handle.
type ConnectFunc func(ctx context.Context, guildID, channelID string) (reader.Player, error)

// ReaderCommands handles the /join, /leave, /setchannel, /status and /help
// slash commands.
type ReaderCommands struct {
	reader  *reader.Reader
	connect ConnectFunc
	// voiceLabel describes the configured voice for /status, e.g.
	// "四国めたん（速度: 1.0）".
	voiceLabel func() string
}

// NewReaderCommands creates a ReaderCommands handler.
func NewReaderCommands(r *reader.Reader, connect ConnectFunc, voiceLabel func() string) *ReaderCommands {
	return &ReaderCommands{
		reader:     r,
		connect:    connect,
		voiceLabel: voiceLabel,
	}
}

// Register registers all reading commands with the router.
func (rc *ReaderCommands) Register(router *discord.CommandRouter) {
	for _, def := range rc.Definitions() {
		var handler discord.HandlerFunc
		switch def.Name {
		case "join":
			handler = rc.handleJoin
		case "leave":
			handler = rc.handleLeave
		case "setchannel":
			handler = rc.handleSetChannel
		case "status":
			handler = rc.handleStatus
		case "help":
			handler = rc.handleHelp
		}
		router.RegisterCommand(def.Name, def, handler)
	}
}

// Definitions returns the ApplicationCommands for Discord registration.
func (rc *ReaderCommands) Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "ボットをボイスチャンネルに参加させます",
		},
		{
			Name:        "leave",
			Description: "ボットをボイスチャンネルから退出させます",
		},
		{
			Name:        "setchannel",
			Description: "読み上げるテキストチャンネルを設定します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "channel",
					Description: "読み上げるテキストチャンネル",
					Type:        discordgo.ApplicationCommandOptionChannel,
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        "status",
			Description: "ボットの現在の状態を表示します",
		},
		{
			Name:        "help",
			Description: "ヘルプを表示します",
		},
	}
}

// handleJoin joins the invoking user's voice channel and starts reading.
func (rc *ReaderCommands) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if i.GuildID == "" || user == nil {
		discord.RespondEphemeral(s, i, "❌ サーバー内で実行してください")
		return
	}

	vs, err := s.State.VoiceState(i.GuildID, user.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		discord.RespondEphemeral(s, i, "❌ ボイスチャンネルに参加してから実行してください")
		return
	}

	sess := rc.reader.Session(i.GuildID)
	if sess.Connected() {
		discord.RespondEphemeral(s, i, "⚠️ 既にボイスチャンネルに参加しています")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	player, err := rc.connect(ctx, i.GuildID, vs.ChannelID)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}

	if err := rc.reader.Start(sess, player); err != nil {
		_ = player.Disconnect()
		if errors.Is(err, reader.ErrAlreadyReading) {
			discord.RespondEphemeral(s, i, "⚠️ 既にボイスチャンネルに参加しています")
			return
		}
		discord.RespondError(s, i, err)
		return
	}

	discord.Respond(s, i, fmt.Sprintf("✅ %s に参加しました\n読み上げを開始します",
		channelName(s, vs.ChannelID)))
}

// handleLeave stops reading and leaves the voice channel.
func (rc *ReaderCommands) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := rc.reader.Session(i.GuildID)

	if err := rc.reader.Stop(sess); err != nil {
		if errors.Is(err, reader.ErrNotReading) {
			discord.RespondEphemeral(s, i, "❌ ボイスチャンネルに参加していません")
			return
		}
		discord.RespondError(s, i, err)
		return
	}

	discord.Respond(s, i, "👋 ボイスチャンネルから退出しました")
}

// handleSetChannel binds the text channel whose messages get read.
func (rc *ReaderCommands) handleSetChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		discord.RespondEphemeral(s, i, "❌ チャンネルを指定してください")
		return
	}
	channelID, ok := opts[0].Value.(string)
	if !ok || channelID == "" {
		discord.RespondEphemeral(s, i, "❌ チャンネルを指定してください")
		return
	}

	sess := rc.reader.Session(i.GuildID)
	sess.BindChannel(channelID)

	discord.Respond(s, i, fmt.Sprintf("✅ 読み上げチャンネルを <#%s> に設定しました", channelID))
}

// handleStatus shows the per-guild reading state.
func (rc *ReaderCommands) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := rc.reader.Session(i.GuildID)
	discord.RespondEmbed(s, i, rc.statusEmbed(s, sess))
}

// statusEmbed builds the /status embed for a session.
func (rc *ReaderCommands) statusEmbed(s *discordgo.Session, sess *reader.Session) *discordgo.MessageEmbed {
	vcStatus := "未接続"
	if sess.Connected() {
		vcStatus = "接続中: " + channelName(s, sess.VoiceChannelID())
	}

	readingStatus := "停止中"
	if sess.Reading() {
		readingStatus = "読み上げ中"
	}

	textChannel := "未設定"
	if ch := sess.BoundChannel(); ch != "" {
		textChannel = "<#" + ch + ">"
	}

	return &discordgo.MessageEmbed{
		Title: "📊 ボットステータス",
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎤 VC接続", Value: vcStatus},
			{Name: "📖 読み上げ", Value: readingStatus},
			{Name: "💬 対象チャンネル", Value: textChannel},
			{Name: "📝 キュー", Value: fmt.Sprintf("%d 件", sess.Queue().Len())},
			{Name: "🔊 音声", Value: rc.voiceLabel()},
		},
	}
}

// handleHelp shows command usage.
func (rc *ReaderCommands) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	discord.RespondEmbed(s, i, helpEmbed())
}

func helpEmbed() *discordgo.MessageEmbed {
	commandsText := "`/join` - ボイスチャンネルに参加して読み上げを開始\n" +
		"`/leave` - ボイスチャンネルから退出して読み上げを停止\n" +
		"`/setchannel` - 読み上げるテキストチャンネルを設定\n" +
		"`/status` - 現在の状態を表示\n" +
		"`/help` - このヘルプを表示"

	usageText := "1. `/setchannel` で読み上げ対象チャンネルを設定\n" +
		"2. VCに参加してから `/join` を実行\n" +
		"3. 設定したチャンネルのメッセージが自動で読み上げられます\n" +
		"4. `/leave` で読み上げを停止"

	return &discordgo.MessageEmbed{
		Title:       "📚 ヘルプ",
		Description: "VCで声を出せない方のための読み上げボット",
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "コマンド一覧", Value: commandsText},
			{Name: "使い方", Value: usageText},
		},
	}
}

// interactionUser returns the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// channelName resolves a channel ID to its name via the state cache,
// falling back to the raw ID.
func channelName(s *discordgo.Session, channelID string) string {
	if s == nil || s.State == nil {
		return channelID
	}
	ch, err := s.State.Channel(channelID)
	if err != nil || ch.Name == "" {
		return channelID
	}
	return ch.Name
}
