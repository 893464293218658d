package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"personabot/pkg/learning"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

// Session interface abstracts discordgo.Session for testing
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) (err error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSession adapts discordgo.Session to the Session interface
type DiscordSession struct {
	*discordgo.Session
}

func (s *DiscordSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return s.Session.Channel(channelID, options...)
}

// ChatService is the part of chat.Service the bot drives.
type ChatService interface {
	Reply(ctx context.Context, p persona.Profile, ownerID string, history []memory.Message, userMessage string) (string, error)
	SaveSession(ctx context.Context, p persona.Profile, ownerID string, messages []memory.Message) (string, error)
	Learn(ctx context.Context, p persona.Profile, ownerID string) (learning.Result, persona.Profile, bool)
	Feedback(f persona.Feedback, p persona.Profile) []string
	Refine(ctx context.Context, p persona.Profile, history []memory.Message) string
}
