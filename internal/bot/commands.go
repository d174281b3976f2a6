// ABOUTME: Subcommand implementations for the command dispatcher
// ABOUTME: Each command is atomic: it fully applies or reports without mutating state

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/chaz/internal/backend"
	"github.com/2389/chaz/internal/role"
	"github.com/2389/chaz/internal/room"
)

// cmdPrint emits the current context verbatim. No backend call, no quota.
func (b *Bot) cmdPrint(ctx context.Context, c *room.Conversation, ev Event) error {
	entries, err := b.history(ctx, c, ev)
	if err != nil {
		return err
	}
	p := b.builder.Build(b.currentRole(c), entries, "")
	return b.transport.SendText(ctx, ev.RoomID, p.Render())
}

// cmdSend calls the backend with only the given message as input, role
// prompt and examples still applied, bypassing room history entirely.
func (b *Bot) cmdSend(ctx context.Context, c *room.Conversation, ev Event, args []string) error {
	if len(args) == 0 {
		return b.transport.SendNotice(ctx, ev.RoomID, "Usage: "+b.prefix+" send <message>")
	}
	if !b.admit(ctx, c, ev) {
		return nil
	}

	p := b.builder.Build(b.currentRole(c), nil, strings.Join(args, " "))
	sel, err := b.selection(c)
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "No backend available: "+err.Error())
	}
	reply, err := b.invoke(ctx, c, sel, p)
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Backend error: "+err.Error())
	}
	return b.transport.SendMarkdown(ctx, ev.RoomID, reply)
}

// cmdModel resolves a model selector and stores the selection. An
// unresolvable selector is reported without touching room state.
func (b *Bot) cmdModel(ctx context.Context, c *room.Conversation, ev Event, args []string) error {
	if len(args) != 1 {
		return b.transport.SendNotice(ctx, ev.RoomID, "Usage: "+b.prefix+" model <selector>")
	}

	sel, err := b.backends.Resolve(args[0])
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Unknown model: "+err.Error())
	}
	c.BackendID = sel.Backend.ID
	c.Model = sel.Model
	b.rooms.Persist(ctx, c)
	return b.transport.SendNotice(ctx, ev.RoomID, "Model set to "+b.backends.DisplayName(sel))
}

// cmdBackend registers an ad-hoc OpenAI-compatible backend.
func (b *Bot) cmdBackend(ctx context.Context, c *room.Conversation, ev Event, args []string) error {
	if len(args) != 3 {
		return b.transport.SendNotice(ctx, ev.RoomID, "Usage: "+b.prefix+" backend <name> <api_base> <api_key>")
	}
	name, apiBase, apiKey := args[0], args[1], args[2]

	if err := b.backends.AddOpenAI(name, apiBase, apiKey); err != nil {
		if errors.Is(err, backend.ErrBackendExists) {
			return b.transport.SendNotice(ctx, ev.RoomID,
				fmt.Sprintf("A backend named %q already exists.", name))
		}
		return b.transport.SendNotice(ctx, ev.RoomID, "Could not add backend: "+err.Error())
	}
	b.logger.Info("backend added by command", "room", ev.RoomID, "sender", ev.Sender, "name", name)
	return b.transport.SendNotice(ctx, ev.RoomID,
		fmt.Sprintf("Backend %q registered. Select a model with %s model %s:<model>", name, b.prefix, name))
}

// cmdRole shows, selects, or defines a role depending on arity.
func (b *Bot) cmdRole(ctx context.Context, c *room.Conversation, ev Event, args []string) error {
	switch {
	case len(args) == 0:
		var sb strings.Builder
		if r := b.currentRole(c); r != nil {
			fmt.Fprintf(&sb, "Current role: %s\n%s\n\n", r.Name, r.Prompt)
		} else {
			sb.WriteString("No role selected.\n\n")
		}
		sb.WriteString("Available roles: " + strings.Join(b.roles.Names(), ", "))
		return b.transport.SendNotice(ctx, ev.RoomID, sb.String())

	case len(args) == 1:
		name := args[0]
		if _, err := b.roles.Get(name); err != nil {
			if errors.Is(err, role.ErrRoleNotFound) {
				return b.transport.SendNotice(ctx, ev.RoomID,
					fmt.Sprintf("Unknown role %q. Available roles: %s", name, strings.Join(b.roles.Names(), ", ")))
			}
			return err
		}
		c.Role = name
		b.rooms.Persist(ctx, c)
		return b.transport.SendNotice(ctx, ev.RoomID, "Role set to "+name)

	default:
		name := args[0]
		promptText := strings.Join(args[1:], " ")
		promptText = strings.TrimPrefix(promptText, `"`)
		promptText = strings.TrimSuffix(promptText, `"`)
		b.roles.Upsert(name, promptText)
		c.Role = name
		b.rooms.Persist(ctx, c)
		return b.transport.SendNotice(ctx, ev.RoomID, "Role "+name+" defined and selected")
	}
}

// cmdList enumerates every known model across all backends.
func (b *Bot) cmdList(ctx context.Context, c *room.Conversation, ev Event) error {
	models := b.backends.ListModels()
	if len(models) == 0 {
		return b.transport.SendNotice(ctx, ev.RoomID, "No models configured.")
	}
	return b.transport.SendText(ctx, ev.RoomID, "Available models:\n"+strings.Join(models, "\n"))
}

// cmdClear advances the context cursor to this command's event: all
// earlier history is permanently out of scope for future builds.
func (b *Bot) cmdClear(ctx context.Context, c *room.Conversation, ev Event) error {
	c.Cursor = ev.EventID
	b.rooms.Persist(ctx, c)
	return b.transport.SendNotice(ctx, ev.RoomID, "Conversation context cleared.")
}
