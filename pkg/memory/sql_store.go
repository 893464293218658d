package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io"
	logstd "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"personabot/pkg/logging"
	"personabot/pkg/persona"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its configuration in package globals.
var migrateMu sync.Mutex

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore keeps personas, templates and conversations in a relational
// database. SQLite is the default; Postgres is selected with DriverPostgres.
type SQLStore struct {
	db     *sqlx.DB
	logger *log.Logger
	clock  stampClock
}

type personaRow struct {
	ID        string         `db:"id"`
	OwnerID   sql.NullString `db:"owner_id"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
	persona.Profile
}

type templateRow struct {
	ID       string `db:"id"`
	Category string `db:"category"`
	persona.Profile
}

type conversationRow struct {
	ID          string         `db:"id"`
	OwnerID     sql.NullString `db:"owner_id"`
	PersonaName string         `db:"persona_name"`
	Messages    string         `db:"messages"`
	CreatedAt   int64          `db:"created_at"`
}

// NewSQLStore opens the database, runs migrations and seeds the default
// persona templates.
func NewSQLStore(driver, dsn string, logger *log.Logger) (*SQLStore, error) {
	logger = logging.OrDiscard(logger)

	if driver == DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrap(err, "create database dir")
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", driver)
	}

	if driver == DriverSQLite {
		// Single writer; one shared connection avoids SQLITE_BUSY under
		// concurrent handlers.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
			if _, err := db.Exec(pragma); err != nil {
				_ = db.Close()
				return nil, errors.Wrapf(err, "apply %s", pragma)
			}
		}
	}

	store := &SQLStore{db: db, logger: logger}
	if err := store.migrate(driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.seedTemplates(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) migrate(driver string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(logstd.New(io.Discard, "", 0))
	goose.SetBaseFS(embedMigrations)

	dialect := "sqlite3"
	if driver == DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	s.logger.Debug("running database migrations", "driver", driver)
	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

func (s *SQLStore) seedTemplates(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM persona_templates WHERE is_default = TRUE`); err != nil {
		return errors.Wrap(err, "count default templates")
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin template seed")
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`
		INSERT INTO persona_templates
		(id, category, name, personality, behaviors, speaking_style, mannerisms, background, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?)`)
	for _, tmpl := range persona.DefaultTemplates() {
		p := tmpl.Profile
		if _, err := tx.ExecContext(ctx, query,
			uuid.NewString(), tmpl.Category, p.Name, p.Personality, p.Behaviors,
			p.SpeakingStyle, p.Mannerisms, p.Background, s.clock.stamp(),
		); err != nil {
			return errors.Wrapf(err, "seed template %q", p.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit template seed")
	}
	s.logger.Info("seeded default persona templates", "count", len(persona.DefaultTemplates()))
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ownerFilter(ownerID string) (string, []any) {
	if ownerID == "" {
		return "owner_id IS NULL", nil
	}
	return "owner_id = ?", []any{ownerID}
}

func nullableOwner(ownerID string) sql.NullString {
	return sql.NullString{String: ownerID, Valid: ownerID != ""}
}

// Conversations

func (s *SQLStore) SaveConversation(ctx context.Context, personaName, ownerID string, messages []Message) (string, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", errors.Wrap(err, "marshal messages")
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO conversations (id, owner_id, persona_name, messages, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		id, nullableOwner(ownerID), personaName, string(payload), s.clock.stamp(),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert conversation")
	}
	return id, nil
}

func (s *SQLStore) GetRecentConversations(ctx context.Context, personaName, ownerID string, limit int) ([]Conversation, error) {
	clause, args := ownerFilter(ownerID)
	query := s.db.Rebind(`
		SELECT id, owner_id, persona_name, messages, created_at
		FROM conversations
		WHERE persona_name = ? AND ` + clause + `
		ORDER BY created_at DESC
		LIMIT ?`)

	var rows []conversationRow
	args = append([]any{personaName}, append(args, limit)...)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select recent conversations")
	}

	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := row.toConversation()
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (s *SQLStore) GetAllMessages(ctx context.Context, personaName, ownerID string) ([]Message, error) {
	clause, args := ownerFilter(ownerID)
	query := s.db.Rebind(`
		SELECT id, owner_id, persona_name, messages, created_at
		FROM conversations
		WHERE persona_name = ? AND ` + clause + `
		ORDER BY created_at ASC`)

	var rows []conversationRow
	if err := s.db.SelectContext(ctx, &rows, query, append([]any{personaName}, args...)...); err != nil {
		return nil, errors.Wrap(err, "select conversations")
	}

	var messages []Message
	for _, row := range rows {
		conv, err := row.toConversation()
		if err != nil {
			return nil, err
		}
		messages = append(messages, conv.Messages...)
	}
	return messages, nil
}

func (r conversationRow) toConversation() (Conversation, error) {
	var messages []Message
	if err := json.Unmarshal([]byte(r.Messages), &messages); err != nil {
		return Conversation{}, errors.Wrapf(err, "decode messages of conversation %s", r.ID)
	}
	return Conversation{
		ID:          r.ID,
		PersonaName: r.PersonaName,
		OwnerID:     r.OwnerID.String,
		Messages:    messages,
		CreatedAt:   time.Unix(0, r.CreatedAt),
	}, nil
}

// Personas

func (s *SQLStore) SavePersona(ctx context.Context, ownerID string, p persona.Profile) (string, error) {
	id := uuid.NewString()
	now := s.clock.stamp()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO personas
		(id, owner_id, name, personality, behaviors, speaking_style, mannerisms, background, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, nullableOwner(ownerID), p.Name, p.Personality, p.Behaviors,
		p.SpeakingStyle, p.Mannerisms, p.Background, now, now,
	)
	if err != nil {
		return "", errors.Wrap(err, "insert persona")
	}
	return id, nil
}

func (s *SQLStore) GetPersona(ctx context.Context, id string) (*persona.Record, error) {
	var row personaRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, owner_id, name, personality, behaviors, speaking_style, mannerisms, background, created_at, updated_at
		FROM personas WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persona.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select persona")
	}
	rec := row.toRecord()
	return &rec, nil
}

func (s *SQLStore) ListPersonas(ctx context.Context, ownerID string) ([]persona.Record, error) {
	clause, args := ownerFilter(ownerID)
	var rows []personaRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, owner_id, name, personality, behaviors, speaking_style, mannerisms, background, created_at, updated_at
		FROM personas WHERE `+clause+`
		ORDER BY created_at DESC`), args...)
	if err != nil {
		return nil, errors.Wrap(err, "select personas")
	}

	records := make([]persona.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (s *SQLStore) UpdatePersona(ctx context.Context, id string, p persona.Profile) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE personas
		SET name = ?, personality = ?, behaviors = ?, speaking_style = ?, mannerisms = ?, background = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Personality, p.Behaviors, p.SpeakingStyle, p.Mannerisms, p.Background, s.clock.stamp(), id,
	)
	if err != nil {
		return errors.Wrap(err, "update persona")
	}
	return requireAffected(res)
}

func (s *SQLStore) DeletePersona(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM personas WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "delete persona")
	}
	return requireAffected(res)
}

func (s *SQLStore) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	var rows []templateRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, category, name, personality, behaviors, speaking_style, mannerisms, background
		FROM persona_templates
		ORDER BY category, name`)
	if err != nil {
		return nil, errors.Wrap(err, "select templates")
	}

	templates := make([]persona.Template, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, persona.Template{ID: row.ID, Category: row.Category, Profile: row.Profile})
	}
	return templates, nil
}

func (s *SQLStore) GetTemplate(ctx context.Context, id string) (*persona.Template, error) {
	var row templateRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, category, name, personality, behaviors, speaking_style, mannerisms, background
		FROM persona_templates WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persona.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select template")
	}
	return &persona.Template{ID: row.ID, Category: row.Category, Profile: row.Profile}, nil
}

func (r personaRow) toRecord() persona.Record {
	return persona.Record{
		ID:        r.ID,
		OwnerID:   r.OwnerID.String,
		Profile:   r.Profile,
		CreatedAt: time.Unix(0, r.CreatedAt),
		UpdatedAt: time.Unix(0, r.UpdatedAt),
	}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return persona.ErrNotFound
	}
	return nil
}
