package council

import (
	"fmt"
	"os"

	"github.com/Personaz1/openclaw-council/internal/config"
)

// PromptLoader returns the system prompt for a role.
type PromptLoader interface {
	Load(role config.RoleConfig) (string, error)
}

// FilePrompts reads prompt files relative to the config document.
type FilePrompts struct {
	cfg *config.Config
}

// NewFilePrompts builds a loader bound to cfg's base directory.
func NewFilePrompts(cfg *config.Config) *FilePrompts {
	return &FilePrompts{cfg: cfg}
}

// Load reads the role's prompt file.
func (p *FilePrompts) Load(role config.RoleConfig) (string, error) {
	path := role.PromptFile
	if p.cfg != nil {
		path = p.cfg.PromptPath(role)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt for %s: %w", role.Name, err)
	}
	return string(b), nil
}

// StaticPrompts serves prompts from memory, keyed by role name.
type StaticPrompts map[string]string

// Load returns the stored prompt or an error when the role has none.
func (p StaticPrompts) Load(role config.RoleConfig) (string, error) {
	s, ok := p[role.Name]
	if !ok {
		return "", fmt.Errorf("no prompt for role %q", role.Name)
	}
	return s, nil
}
