// Package console is a terminal chat host for a single persona.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"personabot/pkg/learning"
	"personabot/pkg/logging"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

const helpText = `Commands:
  /save     save this conversation so the persona remembers it
  /learn    learn from saved conversations and update the persona
  /refine   suggest improvements based on this conversation
  /good     the last reply worked well
  /bad      the last reply missed
  /reset    discard this conversation without saving
  /quit     save and leave`

// Service is the part of chat.Service the console drives.
type Service interface {
	Reply(ctx context.Context, p persona.Profile, ownerID string, history []memory.Message, userMessage string) (string, error)
	SaveSession(ctx context.Context, p persona.Profile, ownerID string, messages []memory.Message) (string, error)
	Learn(ctx context.Context, p persona.Profile, ownerID string) (learning.Result, persona.Profile, bool)
	Feedback(f persona.Feedback, p persona.Profile) []string
	Refine(ctx context.Context, p persona.Profile, history []memory.Message) string
}

// REPL holds one running conversation with a saved persona.
type REPL struct {
	chat     Service
	personas persona.Repository
	record   persona.Record
	history  []memory.Message
	out      io.Writer
	logger   *log.Logger
}

func New(chat Service, personas persona.Repository, record persona.Record, out io.Writer, logger *log.Logger) *REPL {
	if out == nil {
		out = os.Stdout
	}
	return &REPL{
		chat:     chat,
		personas: personas,
		record:   record,
		out:      out,
		logger:   logging.OrDiscard(logger),
	}
}

// Run reads lines with readline until /quit, EOF or interrupt, falling back
// to plain line input when no terminal is available.
func (r *REPL) Run(ctx context.Context) error {
	r.greet()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".personabot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		r.logger.Warn("readline unavailable, using plain input", "error", err)
		return r.RunSimple(ctx, os.Stdin)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return r.finish(ctx)
			}
			return errors.Wrap(err, "reading input")
		}
		if r.Handle(ctx, line) {
			return nil
		}
	}
}

// RunSimple is Run over an arbitrary reader, without line editing.
func (r *REPL) RunSimple(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "reading input")
			}
			fmt.Fprintln(r.out)
			return r.finish(ctx)
		}
		if r.Handle(ctx, scanner.Text()) {
			return nil
		}
	}
}

func (r *REPL) greet() {
	fmt.Fprintf(r.out, "Chatting with %s. Type /help for commands.\n\n", r.record.Profile.DisplayName())
}

// finish saves anything unsaved before the REPL exits.
func (r *REPL) finish(ctx context.Context) error {
	if len(r.history) == 0 {
		fmt.Fprintln(r.out, "Goodbye!")
		return nil
	}
	if err := r.save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Conversation saved. Goodbye!")
	return nil
}

// Handle processes one input line and reports whether the REPL should stop.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, ok := parseCommand(input)
	if !ok {
		r.say(ctx, input)
		return false
	}

	switch cmd {
	case "quit", "exit":
		if err := r.finish(ctx); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
		return true
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "save":
		if len(r.history) == 0 {
			fmt.Fprintln(r.out, "Nothing to save yet.")
			return false
		}
		if err := r.save(ctx); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(r.out, "Conversation saved!")
	case "learn":
		r.learn(ctx)
	case "refine":
		fmt.Fprintf(r.out, "\n%s\n\n", r.chat.Refine(ctx, r.record.Profile, r.history))
	case "good", "bad":
		for _, line := range r.chat.Feedback(persona.ParseFeedback(cmd), r.record.Profile) {
			fmt.Fprintln(r.out, line)
		}
	case "reset":
		r.history = nil
		fmt.Fprintln(r.out, "Session cleared.")
	default:
		fmt.Fprintf(r.out, "Unknown command /%s. Type /help for commands.\n", cmd)
	}
	return false
}

// parseCommand recognises "/name" lines. Arguments after the name are
// ignored.
func parseCommand(input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

func (r *REPL) say(ctx context.Context, input string) {
	reply, err := r.chat.Reply(ctx, r.record.Profile, r.record.OwnerID, r.history, input)
	if err != nil {
		r.logger.Error("generating reply", "persona", r.record.Profile.DisplayName(), "error", err)
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.history = append(r.history,
		memory.Message{Role: memory.RoleUser, Content: input},
		memory.Message{Role: memory.RoleAssistant, Content: reply},
	)
	fmt.Fprintf(r.out, "\n%s: %s\n\n", r.record.Profile.DisplayName(), reply)
}

func (r *REPL) save(ctx context.Context) error {
	if _, err := r.chat.SaveSession(ctx, r.record.Profile, r.record.OwnerID, r.history); err != nil {
		return errors.Wrap(err, "saving conversation")
	}
	r.history = nil
	return nil
}

func (r *REPL) learn(ctx context.Context) {
	if len(r.history) > 0 {
		if err := r.save(ctx); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return
		}
	}

	result, updated, changed := r.chat.Learn(ctx, r.record.Profile, r.record.OwnerID)
	fmt.Fprintln(r.out, learning.Summary(result))
	if !changed {
		return
	}
	if err := r.personas.UpdatePersona(ctx, r.record.ID, updated); err != nil {
		r.logger.Error("updating persona", "id", r.record.ID, "error", err)
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.record.Profile = updated
	fmt.Fprintln(r.out, "Persona updated with the learned traits.")
}
