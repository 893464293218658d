package persona

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrPersonalityRequired is returned when a profile is created without any
// personality traits.
var ErrPersonalityRequired = errors.New("personality traits are required")

// Profile is the declarative description of a character. A blank field is
// treated as absent everywhere in this module.
type Profile struct {
	Name          string `json:"name" db:"name"`
	Personality   string `json:"personality" db:"personality"`
	Behaviors     string `json:"behaviors" db:"behaviors"`
	SpeakingStyle string `json:"speaking_style" db:"speaking_style"`
	Mannerisms    string `json:"mannerisms" db:"mannerisms"`
	Background    string `json:"background" db:"background"`
}

// Validate checks the fields a host must supply before a persona is created.
func (p Profile) Validate() error {
	if !present(p.Personality) {
		return ErrPersonalityRequired
	}
	return nil
}

// DisplayName is the name shown to users, with a generic fallback.
func (p Profile) DisplayName() string {
	if present(p.Name) {
		return strings.TrimSpace(p.Name)
	}
	return "Your AI Character"
}

// Record is a profile as persisted by a repository.
type Record struct {
	ID        string
	OwnerID   string
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Template is a categorised starter profile.
type Template struct {
	ID       string
	Category string
	Profile  Profile
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
