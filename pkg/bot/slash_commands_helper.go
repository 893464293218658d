package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"personabot/pkg/persona"
)

// getUserFromInteraction extracts the user ID and name from an interaction
// It handles both guild (Member) and DM (User) contexts
func getUserFromInteraction(i *discordgo.InteractionCreate) (string, string, error) {
	if i.Member != nil && i.Member.User != nil {
		userName := i.Member.User.Username
		if i.Member.User.GlobalName != "" {
			userName = i.Member.User.GlobalName
		}
		return i.Member.User.ID, userName, nil
	}

	if i.User != nil {
		userName := i.User.Username
		if i.User.GlobalName != "" {
			userName = i.User.GlobalName
		}
		return i.User.ID, userName, nil
	}

	return "", "", errors.New("could not determine user from interaction")
}

// optionMap flattens string options by name.
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	m := make(map[string]string, len(opts))
	for _, opt := range opts {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			m[opt.Name] = strings.TrimSpace(opt.StringValue())
		}
	}
	return m
}

// respond answers an interaction with a message only the caller can see.
// Content past the first message goes out as follow-ups.
func (h *Handler) respond(s Session, i *discordgo.InteractionCreate, content string) {
	parts := chunkRunes(strings.TrimSpace(content), maxMessageRunes)
	if len(parts) == 0 {
		parts = []string{"Done."}
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: parts[0],
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("responding to interaction", "command", i.ApplicationCommandData().Name, "error", err)
		return
	}
	if len(parts) > 1 {
		h.followup(s, i, strings.Join(parts[1:], ""))
	}
}

// deferResponse acknowledges a slow command so the answer can follow later.
func (h *Handler) deferResponse(s Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("deferring interaction", "command", i.ApplicationCommandData().Name, "error", err)
		return false
	}
	return true
}

func (h *Handler) followup(s Session, i *discordgo.InteractionCreate, content string) {
	for _, part := range chunkRunes(strings.TrimSpace(content), maxMessageRunes) {
		_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: part,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			h.logger.Error("sending followup", "command", i.ApplicationCommandData().Name, "error", err)
			return
		}
	}
}

func formatProfile(p persona.Profile) string {
	var sb strings.Builder
	sb.WriteString("**" + p.DisplayName() + "**\n")
	fields := []struct{ label, value string }{
		{"Personality", p.Personality},
		{"Behaviors", p.Behaviors},
		{"Speaking style", p.SpeakingStyle},
		{"Mannerisms", p.Mannerisms},
		{"Background", p.Background},
	}
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			sb.WriteString("**" + f.label + ":** " + v + "\n")
		}
	}
	return sb.String()
}
