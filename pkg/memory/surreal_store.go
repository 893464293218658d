package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"personabot/pkg/logging"
	"personabot/pkg/persona"
	"personabot/pkg/surreal"
)

const (
	conversationsTable = "conversations"
	personasTable      = "personas"
	templatesTable     = "persona_templates"
)

// surrealClient is the subset of surreal.Client the store needs.
type surrealClient interface {
	Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error)
	Put(ctx context.Context, table, id string, content map[string]interface{}) error
	Get(ctx context.Context, table, id string) (map[string]interface{}, error)
	Delete(ctx context.Context, table, id string) error
	SelectWhere(ctx context.Context, table string, filter map[string]interface{}, opts surreal.SelectOptions) ([]map[string]interface{}, error)
	Count(ctx context.Context, table string, filter map[string]interface{}) (int, error)
}

// SurrealStore keeps personas, templates and conversations in SurrealDB.
// Owners are stored as plain strings; "" marks an ownerless record.
type SurrealStore struct {
	client surrealClient
	logger *log.Logger
	clock  stampClock
}

func NewSurrealStore(ctx context.Context, client surrealClient, logger *log.Logger) (*SurrealStore, error) {
	store := &SurrealStore{
		client: client,
		logger: logging.OrDiscard(logger),
	}
	if err := store.Init(ctx); err != nil {
		return nil, errors.Wrap(err, "initialize surreal schema")
	}
	if err := store.seedTemplates(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SurrealStore) Init(ctx context.Context) error {
	query := `
		DEFINE TABLE IF NOT EXISTS conversations SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS uid ON conversations TYPE string;
		DEFINE FIELD IF NOT EXISTS owner_id ON conversations TYPE string;
		DEFINE FIELD IF NOT EXISTS persona_name ON conversations TYPE string;
		DEFINE FIELD IF NOT EXISTS messages ON conversations TYPE string;
		DEFINE FIELD IF NOT EXISTS created_at ON conversations TYPE int;
		DEFINE INDEX IF NOT EXISTS conversations_persona ON conversations FIELDS persona_name, owner_id, created_at;

		DEFINE TABLE IF NOT EXISTS personas SCHEMALESS;
		DEFINE INDEX IF NOT EXISTS personas_owner ON personas FIELDS owner_id, created_at;

		DEFINE TABLE IF NOT EXISTS persona_templates SCHEMALESS;
	`
	_, err := s.client.Query(ctx, query, nil)
	return err
}

func (s *SurrealStore) seedTemplates(ctx context.Context) error {
	count, err := s.client.Count(ctx, templatesTable, map[string]interface{}{"is_default": true})
	if err != nil {
		return errors.Wrap(err, "count default templates")
	}
	if count > 0 {
		return nil
	}

	for _, tmpl := range persona.DefaultTemplates() {
		id := uuid.NewString()
		content := profileContent(tmpl.Profile)
		content["uid"] = id
		content["category"] = tmpl.Category
		content["is_default"] = true
		content["created_at"] = s.clock.stamp()
		if err := s.client.Put(ctx, templatesTable, id, content); err != nil {
			return errors.Wrapf(err, "seed template %q", tmpl.Profile.Name)
		}
	}
	s.logger.Info("seeded default persona templates", "count", len(persona.DefaultTemplates()))
	return nil
}

// Conversations

func (s *SurrealStore) SaveConversation(ctx context.Context, personaName, ownerID string, messages []Message) (string, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", errors.Wrap(err, "marshal messages")
	}

	id := uuid.NewString()
	err = s.client.Put(ctx, conversationsTable, id, map[string]interface{}{
		"uid":          id,
		"owner_id":     ownerID,
		"persona_name": personaName,
		"messages":     string(payload),
		"created_at":   s.clock.stamp(),
	})
	if err != nil {
		return "", errors.Wrap(err, "create conversation")
	}
	return id, nil
}

func (s *SurrealStore) GetRecentConversations(ctx context.Context, personaName, ownerID string, limit int) ([]Conversation, error) {
	rows, err := s.client.SelectWhere(ctx, conversationsTable,
		map[string]interface{}{"persona_name": personaName, "owner_id": ownerID},
		surreal.SelectOptions{OrderBy: "created_at", Descending: true, Limit: limit},
	)
	if err != nil {
		return nil, errors.Wrap(err, "select recent conversations")
	}
	return decodeConversations(rows)
}

func (s *SurrealStore) GetAllMessages(ctx context.Context, personaName, ownerID string) ([]Message, error) {
	rows, err := s.client.SelectWhere(ctx, conversationsTable,
		map[string]interface{}{"persona_name": personaName, "owner_id": ownerID},
		surreal.SelectOptions{OrderBy: "created_at"},
	)
	if err != nil {
		return nil, errors.Wrap(err, "select conversations")
	}
	conversations, err := decodeConversations(rows)
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, conv := range conversations {
		messages = append(messages, conv.Messages...)
	}
	return messages, nil
}

func decodeConversations(rows []map[string]interface{}) ([]Conversation, error) {
	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := decodeConversation(row)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func decodeConversation(row map[string]interface{}) (Conversation, error) {
	conv := Conversation{
		ID:          surreal.AsString(row["uid"]),
		PersonaName: surreal.AsString(row["persona_name"]),
		OwnerID:     surreal.AsString(row["owner_id"]),
		CreatedAt:   time.Unix(0, surreal.AsInt64(row["created_at"])),
	}
	if raw := surreal.AsString(row["messages"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &conv.Messages); err != nil {
			return Conversation{}, errors.Wrapf(err, "decode messages of conversation %s", conv.ID)
		}
	}
	return conv, nil
}

// Personas

func (s *SurrealStore) SavePersona(ctx context.Context, ownerID string, p persona.Profile) (string, error) {
	id := uuid.NewString()
	now := s.clock.stamp()
	content := profileContent(p)
	content["uid"] = id
	content["owner_id"] = ownerID
	content["created_at"] = now
	content["updated_at"] = now
	if err := s.client.Put(ctx, personasTable, id, content); err != nil {
		return "", errors.Wrap(err, "create persona")
	}
	return id, nil
}

func (s *SurrealStore) GetPersona(ctx context.Context, id string) (*persona.Record, error) {
	row, err := s.client.Get(ctx, personasTable, id)
	if err != nil {
		return nil, errors.Wrap(err, "select persona")
	}
	if row == nil {
		return nil, persona.ErrNotFound
	}
	rec := decodePersona(row)
	return &rec, nil
}

func (s *SurrealStore) ListPersonas(ctx context.Context, ownerID string) ([]persona.Record, error) {
	rows, err := s.client.SelectWhere(ctx, personasTable,
		map[string]interface{}{"owner_id": ownerID},
		surreal.SelectOptions{OrderBy: "created_at", Descending: true},
	)
	if err != nil {
		return nil, errors.Wrap(err, "select personas")
	}
	records := make([]persona.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, decodePersona(row))
	}
	return records, nil
}

func (s *SurrealStore) UpdatePersona(ctx context.Context, id string, p persona.Profile) error {
	existing, err := s.GetPersona(ctx, id)
	if err != nil {
		return err
	}
	content := profileContent(p)
	content["uid"] = id
	content["owner_id"] = existing.OwnerID
	content["created_at"] = existing.CreatedAt.UnixNano()
	content["updated_at"] = s.clock.stamp()
	if err := s.client.Put(ctx, personasTable, id, content); err != nil {
		return errors.Wrap(err, "update persona")
	}
	return nil
}

func (s *SurrealStore) DeletePersona(ctx context.Context, id string) error {
	if _, err := s.GetPersona(ctx, id); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, personasTable, id); err != nil {
		return errors.Wrap(err, "delete persona")
	}
	return nil
}

func (s *SurrealStore) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	rows, err := s.client.SelectWhere(ctx, templatesTable, nil, surreal.SelectOptions{OrderBy: "created_at"})
	if err != nil {
		return nil, errors.Wrap(err, "select templates")
	}
	templates := make([]persona.Template, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, decodeTemplate(row))
	}
	return templates, nil
}

func (s *SurrealStore) GetTemplate(ctx context.Context, id string) (*persona.Template, error) {
	row, err := s.client.Get(ctx, templatesTable, id)
	if err != nil {
		return nil, errors.Wrap(err, "select template")
	}
	if row == nil {
		return nil, persona.ErrNotFound
	}
	tmpl := decodeTemplate(row)
	return &tmpl, nil
}

func profileContent(p persona.Profile) map[string]interface{} {
	return map[string]interface{}{
		"name":           p.Name,
		"personality":    p.Personality,
		"behaviors":      p.Behaviors,
		"speaking_style": p.SpeakingStyle,
		"mannerisms":     p.Mannerisms,
		"background":     p.Background,
	}
}

func decodeProfile(row map[string]interface{}) persona.Profile {
	return persona.Profile{
		Name:          surreal.AsString(row["name"]),
		Personality:   surreal.AsString(row["personality"]),
		Behaviors:     surreal.AsString(row["behaviors"]),
		SpeakingStyle: surreal.AsString(row["speaking_style"]),
		Mannerisms:    surreal.AsString(row["mannerisms"]),
		Background:    surreal.AsString(row["background"]),
	}
}

func decodePersona(row map[string]interface{}) persona.Record {
	return persona.Record{
		ID:        surreal.AsString(row["uid"]),
		OwnerID:   surreal.AsString(row["owner_id"]),
		Profile:   decodeProfile(row),
		CreatedAt: time.Unix(0, surreal.AsInt64(row["created_at"])),
		UpdatedAt: time.Unix(0, surreal.AsInt64(row["updated_at"])),
	}
}

func decodeTemplate(row map[string]interface{}) persona.Template {
	return persona.Template{
		ID:       surreal.AsString(row["uid"]),
		Category: surreal.AsString(row["category"]),
		Profile:  decodeProfile(row),
	}
}
