package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"personabot/pkg/learning"
	"personabot/pkg/persona"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "persona",
		Description: "Create, pick or inspect the persona you chat with",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a new persona and start chatting with it",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("personality", "Personality traits, comma separated", true),
					stringOption("name", "Character name", false),
					stringOption("behaviors", "Typical behaviors", false),
					stringOption("speaking_style", "How the character talks", false),
					stringOption("mannerisms", "Catchphrases and habits", false),
					stringOption("background", "Backstory", false),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "template",
				Description: "Start from one of the starter personas",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "template",
						Description: "Starter persona",
						Required:    true,
						Choices:     templateChoices(),
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show your active persona",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the personas you have saved",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "use",
				Description: "Switch to one of your saved personas",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("name", "Persona name", true),
				},
			},
		},
	},
	{
		Name:        "learn",
		Description: "Let your persona learn from your saved conversations",
	},
	{
		Name:        "feedback",
		Description: "Tell the persona how its last replies landed",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "rating",
				Description: "How did it do?",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "👍 Good", Value: "good"},
					{Name: "👎 Bad", Value: "bad"},
				},
			},
		},
	},
	{
		Name:        "refine",
		Description: "Get suggestions for improving your persona from this session",
	},
	{
		Name:        "save",
		Description: "Save the current conversation so the persona remembers it",
	},
	{
		Name:        "reset",
		Description: "Discard the current conversation without saving it",
	},
}

// SlashCommandHandlers maps command names to their handler functions
var SlashCommandHandlers = map[string]func(h *Handler, s Session, i *discordgo.InteractionCreate){
	"persona":  handlePersonaCommand,
	"learn":    handleLearnCommand,
	"feedback": handleFeedbackCommand,
	"refine":   handleRefineCommand,
	"save":     handleSaveCommand,
	"reset":    handleResetCommand,
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func templateChoices() []*discordgo.ApplicationCommandOptionChoice {
	templates := persona.DefaultTemplates()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(templates))
	for _, t := range templates {
		name := t.Profile.DisplayName()
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%s)", name, t.Category),
			Value: name,
		})
	}
	return choices
}

func handlePersonaCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("persona command", "error", err)
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		h.respond(s, i, "Pick a subcommand: create, template, show, list or use.")
		return
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	ctx, cancel := h.requestContext()
	defer cancel()

	switch sub.Name {
	case "create":
		h.respond(s, i, h.createPersona(ctx, userID, persona.Profile{
			Name:          opts["name"],
			Personality:   opts["personality"],
			Behaviors:     opts["behaviors"],
			SpeakingStyle: opts["speaking_style"],
			Mannerisms:    opts["mannerisms"],
			Background:    opts["background"],
		}))
	case "template":
		h.respond(s, i, h.personaFromTemplate(ctx, userID, opts["template"]))
	case "show":
		sess, ok := h.activeSession(userID)
		if !ok {
			h.respond(s, i, noPersonaMessage)
			return
		}
		h.respond(s, i, formatProfile(sess.profile))
	case "list":
		h.respond(s, i, h.listPersonas(ctx, userID))
	case "use":
		h.respond(s, i, h.usePersona(ctx, userID, opts["name"]))
	default:
		h.logger.Warn("unknown persona subcommand", "name", sub.Name)
	}
}

func (h *Handler) createPersona(ctx context.Context, userID string, p persona.Profile) string {
	if err := p.Validate(); err != nil {
		return "Please describe at least the personality traits."
	}
	id, err := h.personas.SavePersona(ctx, userID, p)
	if err != nil {
		h.logger.Error("saving persona", "user", userID, "error", err)
		return "Something went wrong saving your persona... Try again later?"
	}
	h.activate(ctx, userID, id, p)
	return fmt.Sprintf("✨ **%s** is ready! Mention me or send a DM to start chatting.", p.DisplayName())
}

func (h *Handler) personaFromTemplate(ctx context.Context, userID, name string) string {
	templates, err := h.personas.ListTemplates(ctx)
	if err != nil {
		h.logger.Error("listing templates", "error", err)
		return "Couldn't load the starter personas right now."
	}
	for _, t := range templates {
		if strings.EqualFold(t.Profile.DisplayName(), name) || t.ID == name {
			return h.createPersona(ctx, userID, t.Profile)
		}
	}
	return fmt.Sprintf("There's no starter persona called %q.", name)
}

func (h *Handler) listPersonas(ctx context.Context, userID string) string {
	records, err := h.personas.ListPersonas(ctx, userID)
	if err != nil {
		h.logger.Error("listing personas", "user", userID, "error", err)
		return "Couldn't load your personas right now."
	}
	if len(records) == 0 {
		return "You haven't saved any personas yet."
	}

	active, _ := h.activeSession(userID)
	var sb strings.Builder
	sb.WriteString("**Your personas**\n")
	for _, r := range records {
		marker := ""
		if r.ID == active.personaID {
			marker = " (active)"
		}
		fmt.Fprintf(&sb, "- %s%s\n", r.Profile.DisplayName(), marker)
	}
	return sb.String()
}

func (h *Handler) usePersona(ctx context.Context, userID, name string) string {
	records, err := h.personas.ListPersonas(ctx, userID)
	if err != nil {
		h.logger.Error("listing personas", "user", userID, "error", err)
		return "Couldn't load your personas right now."
	}
	for _, r := range records {
		if strings.EqualFold(r.Profile.DisplayName(), name) || r.ID == name {
			h.activate(ctx, userID, r.ID, r.Profile)
			return fmt.Sprintf("Now chatting as **%s**.", r.Profile.DisplayName())
		}
	}
	return fmt.Sprintf("You don't have a persona called %q.", name)
}

func handleLearnCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("learn command", "error", err)
		return
	}
	if !h.deferResponse(s, i) {
		return
	}

	ctx, cancel := h.requestContext()
	defer cancel()

	result, changed, err := h.learnFor(ctx, userID)
	switch {
	case errors.Is(err, errNoActivePersona):
		h.followup(s, i, noPersonaMessage)
		return
	case err != nil:
		h.logger.Error("learning", "user", userID, "error", err)
		h.followup(s, i, "Something went wrong while learning... Try again later?")
		return
	}

	content := learning.Summary(result)
	if changed {
		content = strings.TrimRight(content, "\n") + "\n\n✨ Persona updated with the learned traits."
	}
	h.followup(s, i, content)
}

func handleFeedbackCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("feedback command", "error", err)
		return
	}
	sess, ok := h.activeSession(userID)
	if !ok {
		h.respond(s, i, noPersonaMessage)
		return
	}

	rating := optionMap(i.ApplicationCommandData().Options)["rating"]
	advice := h.chat.Feedback(persona.ParseFeedback(rating), sess.profile)
	h.respond(s, i, strings.Join(advice, "\n"))
}

func handleRefineCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("refine command", "error", err)
		return
	}
	profile, history, ok := h.snapshot(userID)
	if !ok {
		h.respond(s, i, noPersonaMessage)
		return
	}
	if !h.deferResponse(s, i) {
		return
	}

	ctx, cancel := h.requestContext()
	defer cancel()

	h.followup(s, i, h.chat.Refine(ctx, profile, history))
}

func handleSaveCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("save command", "error", err)
		return
	}
	if _, ok := h.activeSession(userID); !ok {
		h.respond(s, i, noPersonaMessage)
		return
	}

	ctx, cancel := h.requestContext()
	defer cancel()

	saved, err := h.flushSession(ctx, userID)
	switch {
	case err != nil:
		h.logger.Error("saving session", "user", userID, "error", err)
		h.respond(s, i, "Ugh, something went wrong saving the conversation... Try again later?")
	case !saved:
		h.respond(s, i, "Nothing to save yet.")
	default:
		h.respond(s, i, "Conversation saved! 💾")
	}
}

func handleResetCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Error("reset command", "error", err)
		return
	}
	if !h.resetSession(userID) {
		h.respond(s, i, noPersonaMessage)
		return
	}
	h.respond(s, i, "Session cleared. Starting fresh. 💭")
}

// InteractionCreate handles all slash command interactions
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(&DiscordSession{s}, i)
}

func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	// Only handle application commands (slash commands)
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name
	if handler, ok := SlashCommandHandlers[commandName]; ok {
		handler(h, s, i)
	} else {
		h.logger.Warn("unknown slash command", "name", commandName)
	}
}

// RegisterSlashCommands registers all slash commands with Discord
func (h *Handler) RegisterSlashCommands(s *discordgo.Session, guildID string) ([]*discordgo.ApplicationCommand, error) {
	h.logger.Info("registering slash commands", "guild", guildID)

	registeredCommands := make([]*discordgo.ApplicationCommand, len(SlashCommands))
	for i, cmd := range SlashCommands {
		// Register globally (guildID = "") or for a specific guild
		registeredCmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %q command", cmd.Name)
		}
		registeredCommands[i] = registeredCmd
		h.logger.Debug("registered command", "name", cmd.Name)
	}

	return registeredCommands, nil
}

// UnregisterSlashCommands removes all registered slash commands
func (h *Handler) UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand) error {
	h.logger.Info("unregistering slash commands", "guild", guildID)

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return errors.Wrapf(err, "deleting %q command", cmd.Name)
		}
	}
	return nil
}
