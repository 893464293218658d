package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"personabot/pkg/bot"
	"personabot/pkg/console"
	"personabot/pkg/learning"
	"personabot/pkg/persona"
)

var (
	configPath string
	envPath    string
	ownerID    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "personabot",
		Short:        "Chat with configurable AI personas that learn from your conversations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to a .env file with secrets")
	root.PersistentFlags().StringVar(&ownerID, "owner", "", "owner id personas and conversations are filed under")

	root.AddCommand(
		newDiscordCmd(),
		newChatCmd(),
		newLearnCmd(),
		newPersonaCmd(),
		newTemplatesCmd(),
	)
	return root
}

// withApp loads configuration, runs validate, and hands the app to fn.
// Resources opened by fn are released afterwards.
func withApp(validate func(*app) error, fn func(ctx context.Context, a *app) error) error {
	a, err := loadApp(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := validate(a); err != nil {
		return err
	}
	return fn(context.Background(), a)
}

func validateCore(a *app) error    { return a.cfg.Validate() }
func validateDiscord(a *app) error { return a.cfg.ValidateDiscord() }

// validateStorage skips provider credentials for commands that never call
// the model.
func validateStorage(a *app) error { return a.cfg.ValidateStorage() }

func newDiscordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Run the Discord bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateDiscord, runDiscord)
		},
	}
}

func runDiscord(ctx context.Context, a *app) error {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	completer, err := a.newCompleter(ctx)
	if err != nil {
		return err
	}
	service := a.newChatService(backend, completer)

	handler := bot.NewHandler(service, backend, bot.Options{
		IdleTimeout:   time.Duration(a.cfg.Bot.SessionIdleMinutes) * time.Minute,
		SweepInterval: time.Duration(a.cfg.Bot.LearningSweepHours * float64(time.Hour)),
	}, a.logger.WithPrefix("bot"))

	dg, err := discordgo.New("Bot " + a.cfg.Secrets.DiscordToken)
	if err != nil {
		return errors.Wrap(err, "create discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	dg.AddHandler(handler.MessageCreate)
	dg.AddHandler(handler.InteractionCreate)

	// Background work must be running before the gateway delivers events.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	handler.Start(ctx)
	defer handler.Stop()

	if err := dg.Open(); err != nil {
		return errors.Wrap(err, "open discord connection")
	}
	defer dg.Close()

	// Set Bot ID in handler (so it can ignore itself)
	handler.SetBotID(dg.State.User.ID)

	// Empty guild id registers globally; a guild id makes updates instant during development.
	guildID := a.cfg.Secrets.DiscordGuildID
	registered, err := handler.RegisterSlashCommands(dg, guildID)
	if err != nil {
		return err
	}
	defer func() {
		if err := handler.UnregisterSlashCommands(dg, guildID, registered); err != nil {
			a.logger.Warn("unregistering slash commands", "error", err)
		}
	}()

	a.logger.Info("bot is now running, press CTRL-C to exit", "user", dg.State.User.Username)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	a.logger.Info("shutting down")
	return nil
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <persona>",
		Short: "Chat with a saved persona in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateCore, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				record, err := resolvePersona(ctx, backend, ownerID, args[0])
				if err != nil {
					return err
				}
				completer, err := a.newCompleter(ctx)
				if err != nil {
					return err
				}
				service := a.newChatService(backend, completer)
				repl := console.New(service, backend, *record, cmd.OutOrStdout(), a.logger.WithPrefix("console"))
				return repl.Run(ctx)
			})
		},
	}
}

func newLearnCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "learn <persona>",
		Short: "Analyse saved conversations and update the persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateCore, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				record, err := resolvePersona(ctx, backend, ownerID, args[0])
				if err != nil {
					return err
				}
				completer, err := a.newCompleter(ctx)
				if err != nil {
					return err
				}
				service := a.newChatService(backend, completer)

				out := cmd.OutOrStdout()
				result, updated, changed := service.Learn(ctx, record.Profile, record.OwnerID)
				fmt.Fprintln(out, learning.Summary(result))
				if !changed || dryRun {
					return nil
				}
				if err := backend.UpdatePersona(ctx, record.ID, updated); err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated %s.\n", updated.DisplayName())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the analysis without updating the persona")
	return cmd
}

func newPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage saved personas",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateStorage, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				records, err := backend.ListPersonas(ctx, ownerID)
				if err != nil {
					return err
				}
				return printPersonas(cmd.OutOrStdout(), records)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <persona>",
		Short: "Show a persona and its system prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateStorage, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				record, err := resolvePersona(ctx, backend, ownerID, args[0])
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), record.ID, record.Profile)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <persona>",
		Short: "Delete a saved persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateStorage, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				record, err := resolvePersona(ctx, backend, ownerID, args[0])
				if err != nil {
					return err
				}
				if err := backend.DeletePersona(ctx, record.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s).\n", record.Profile.DisplayName(), record.ID)
				return nil
			})
		},
	}

	var rename string
	fromTemplate := &cobra.Command{
		Use:   "from-template <template>",
		Short: "Save a new persona copied from a starter template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateStorage, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				templates, err := backend.ListTemplates(ctx)
				if err != nil {
					return err
				}
				tmpl, ok := findTemplate(templates, args[0])
				if !ok {
					return errors.Errorf("no template named %q", args[0])
				}
				profile := tmpl.Profile
				if rename != "" {
					profile.Name = rename
				}
				id, err := backend.SavePersona(ctx, ownerID, profile)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s as %s.\n", profile.DisplayName(), id)
				return nil
			})
		},
	}
	fromTemplate.Flags().StringVar(&rename, "name", "", "name for the new persona")

	cmd.AddCommand(list, show, del, fromTemplate)
	return cmd
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the starter persona templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(validateStorage, func(ctx context.Context, a *app) error {
				backend, err := a.openBackend(ctx)
				if err != nil {
					return err
				}
				templates, err := backend.ListTemplates(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tNAME\tPERSONALITY")
				for _, t := range templates {
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.Category, t.Profile.DisplayName(), t.Profile.Personality)
				}
				return w.Flush()
			})
		},
	}
}

// resolvePersona accepts a persona id or a case-insensitive name among the
// owner's personas.
func resolvePersona(ctx context.Context, repo persona.Repository, owner, ref string) (*persona.Record, error) {
	record, err := repo.GetPersona(ctx, ref)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, persona.ErrNotFound) {
		return nil, err
	}

	records, err := repo.ListPersonas(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if strings.EqualFold(records[i].Profile.DisplayName(), ref) {
			return &records[i], nil
		}
	}
	return nil, errors.Wrapf(persona.ErrNotFound, "%q", ref)
}

func findTemplate(templates []persona.Template, ref string) (persona.Template, bool) {
	for _, t := range templates {
		if t.ID == ref || strings.EqualFold(t.Profile.DisplayName(), ref) {
			return t, true
		}
	}
	return persona.Template{}, false
}

func printPersonas(out io.Writer, records []persona.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No personas saved yet.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Profile.DisplayName(), r.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func printProfile(out io.Writer, id string, p persona.Profile) {
	fmt.Fprintf(out, "%s (%s)\n\n", p.DisplayName(), id)
	fmt.Fprintln(out, persona.BaseSystemPrompt(p))
}
