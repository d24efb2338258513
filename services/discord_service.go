package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"uscview/models"
)

const (
	colorAlarmChannel = 0xd9534f
	colorAlarmSession = 0xf0ad4e
)

// StatusFunc reports the current panel for the "!usc status" command
type StatusFunc func() (*models.Panel, bool)

type DiscordBotService struct {
	session   *discordgo.Session
	channelID string
	botID     string
	enabled   bool
	status    StatusFunc
}

// NewDiscordBotService connects the bot. Without a token or channel the
// returned service is disabled and every send reports an error.
func NewDiscordBotService(token, channelID string, status StatusFunc) (*DiscordBotService, error) {
	if token == "" || channelID == "" {
		log.Info().Msg("Discord token or channel not provided, Discord notifications disabled")
		return &DiscordBotService{enabled: false}, nil
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	user, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}

	bot := &DiscordBotService{
		session:   session,
		channelID: channelID,
		botID:     user.ID,
		enabled:   true,
		status:    status,
	}

	session.AddHandler(bot.messageHandler)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	log.Info().Str("bot_id", user.ID).Str("channel", channelID).Msg("Discord bot connected")
	return bot, nil
}

func (d *DiscordBotService) Enabled() bool {
	return d != nil && d.enabled
}

func (d *DiscordBotService) Close() {
	if d.Enabled() && d.session != nil {
		log.Info().Msg("Closing Discord bot connection")
		d.session.Close()
	}
}

func (d *DiscordBotService) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.botID || m.ChannelID != d.channelID {
		return
	}
	if reply := d.commandReply(m.Content); reply != "" {
		if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
			log.Warn().Err(err).Msg("Discord reply failed")
		}
	}
}

// commandReply answers "!usc <cmd>" messages; other content yields ""
func (d *DiscordBotService) commandReply(content string) string {
	if !strings.HasPrefix(content, "!usc") {
		return ""
	}
	args := strings.Fields(content)
	if len(args) < 2 {
		return ""
	}

	switch args[1] {
	case "ping":
		return "Pong! USC channel monitor is online."
	case "help":
		return "**USC Channel Monitor Commands:**\n" +
			"`!usc ping` - Check if bot is online\n" +
			"`!usc help` - Show this help message\n" +
			"`!usc status` - Summary of the current channel panel"
	case "status":
		if d.status == nil {
			return "No channel panel available yet."
		}
		panel, ok := d.status()
		if !ok {
			return "No channel panel available yet."
		}
		return fmt.Sprintf("%d channels, %d sessions, %d alarms (rendered %s)",
			panel.Channels, panel.Sessions, panel.Alarms, panel.RenderedAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("Unknown command: `%s`. Try `!usc help`", args[1])
	}
}

// SendAlarm posts one alarm event as an embed
func (d *DiscordBotService) SendAlarm(event *models.AlarmEvent) error {
	if !d.Enabled() {
		return fmt.Errorf("Discord bot not enabled")
	}
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, alarmEmbed(event)); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

func alarmEmbed(event *models.AlarmEvent) *discordgo.MessageEmbed {
	title := fmt.Sprintf("Channel %s alarms rose to %d", event.ChannelID, event.Current)
	color := colorAlarmChannel
	if event.Scope == models.AlarmScopeSession {
		title = fmt.Sprintf("Session %s on channel %s alarms rose to %d", event.SessionID, event.ChannelID, event.Current)
		color = colorAlarmSession
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Channel", Value: orDash(event.ChannelID), Inline: true},
		{Name: "Device", Value: orDash(event.DeviceNode), Inline: true},
		{Name: "Alarms", Value: fmt.Sprintf("%d → %d", event.Previous, event.Current), Inline: true},
	}
	if event.SessionID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Session", Value: event.SessionID, Inline: true})
	}
	if event.LastMessage != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Last alarm", Value: event.LastMessage})
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "USC channel monitor"},
	}
}

// SendMessage sends a plain text message
func (d *DiscordBotService) SendMessage(message string) error {
	if !d.Enabled() {
		return fmt.Errorf("Discord bot not enabled")
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
