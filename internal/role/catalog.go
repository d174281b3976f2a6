// ABOUTME: Thread-safe catalog of named system-prompt roles for chaz
// ABOUTME: Holds built-in and configured roles with last-write-wins upserts

package role

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/2389/chaz/internal/config"
)

// ErrRoleNotFound indicates the named role does not exist in the catalog.
var ErrRoleNotFound = errors.New("role not found")

// Speaker identifies who speaks an example line.
type Speaker string

// Speaker constants
const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Example is a single example exchange line attached to a role.
type Example struct {
	Speaker Speaker
	Text    string
}

// Role is a named system prompt with optional example exchanges.
// Roles are immutable once handed out; the catalog replaces whole values.
type Role struct {
	Name        string
	Description string
	Prompt      string
	Examples    []Example
}

// Catalog maintains the set of known roles. It is safe for concurrent use:
// many rooms read while a role command from any one room writes.
type Catalog struct {
	mu     sync.RWMutex
	roles  map[string]*Role
	logger *slog.Logger
}

// NewCatalog creates a catalog seeded with the built-in roles plus any
// roles defined in configuration. Configured roles shadow built-ins of
// the same name.
func NewCatalog(configured []config.RoleConfig, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		roles:  make(map[string]*Role),
		logger: logger.With("component", "roles"),
	}
	for _, r := range builtinRoles() {
		c.roles[r.Name] = r
	}
	for _, rc := range configured {
		c.roles[rc.Name] = fromConfig(rc)
	}
	return c
}

// fromConfig converts a config role definition into a catalog Role.
func fromConfig(rc config.RoleConfig) *Role {
	r := &Role{
		Name:        rc.Name,
		Description: rc.Description,
		Prompt:      rc.Prompt,
	}
	for _, ex := range rc.Example {
		speaker := SpeakerUser
		if strings.EqualFold(ex.User, string(SpeakerAssistant)) {
			speaker = SpeakerAssistant
		}
		r.Examples = append(r.Examples, Example{Speaker: speaker, Text: ex.Message})
	}
	return r
}

// Get returns the role with the given name.
// Returns ErrRoleNotFound if no such role exists.
func (c *Catalog) Get(name string) (*Role, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.roles[name]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return r, nil
}

// Upsert creates or replaces a role definition. Replacement is
// last-write-wins and in-memory only.
func (c *Catalog) Upsert(name, prompt string) *Role {
	r := &Role{Name: name, Prompt: prompt}

	c.mu.Lock()
	_, replaced := c.roles[name]
	c.roles[name] = r
	c.mu.Unlock()

	c.logger.Info("role defined", "name", name, "replaced", replaced)
	return r
}

// Names returns all known role names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.roles))
	for name := range c.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
