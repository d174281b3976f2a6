// ABOUTME: Bot wiring and top-level event handling
// ABOUTME: Gates events through admission, then dispatches commands or conversation

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/chaz/internal/admission"
	"github.com/2389/chaz/internal/backend"
	"github.com/2389/chaz/internal/config"
	"github.com/2389/chaz/internal/prompt"
	"github.com/2389/chaz/internal/role"
	"github.com/2389/chaz/internal/room"
)

// subcommands are the recognized command words after the prefix.
var subcommands = []string{
	"print", "send", "model", "backend", "role", "list", "clear", "rename", "help",
}

// Bot orchestrates conversations: admission, command dispatch, context
// building, backend invocation, and reply delivery.
type Bot struct {
	transport    Transport
	gate         *admission.Gate
	rooms        *room.Manager
	backends     *backend.Registry
	roles        *role.Catalog
	builder      *prompt.Builder
	prefix       string
	summaryModel string
	logger       *slog.Logger
}

// New wires a bot from its collaborators.
func New(t Transport, gate *admission.Gate, rooms *room.Manager, backends *backend.Registry, roles *role.Catalog, chat config.ChatConfig, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := chat.CommandPrefix
	if prefix == "" {
		prefix = config.DefaultCommandPrefix
	}
	return &Bot{
		transport: t,
		gate:      gate,
		rooms:     rooms,
		backends:  backends,
		roles:     roles,
		builder: &prompt.Builder{
			Prefix:       prefix,
			Commands:     subcommands,
			DisableMedia: chat.DisableMediaContext,
		},
		prefix:       prefix,
		summaryModel: chat.ChatSummaryModel,
		logger:       logger.With("component", "bot"),
	}
}

// HandleInvite applies invite admission: join iff the inviting account
// matches the allow list, then leave again if the room turns out to
// exceed the size ceiling.
func (b *Bot) HandleInvite(ctx context.Context, roomID, inviter string) error {
	if !b.gate.AccountAllowed(inviter) {
		b.logger.Info("invite ignored", "room", roomID, "inviter", inviter)
		return nil
	}

	if err := b.transport.JoinRoom(ctx, roomID); err != nil {
		return fmt.Errorf("joining %s: %w", roomID, err)
	}

	size, err := b.transport.JoinedMemberCount(ctx, roomID)
	if err != nil {
		b.logger.Warn("member count unavailable after join", "room", roomID, "error", err)
		size = 0
	}
	if decision := b.gate.AcceptInvite(inviter, size); !decision.Allowed {
		b.transport.SendNotice(ctx, roomID, "This room exceeds my configured size limit, goodbye.")
		if err := b.transport.LeaveRoom(ctx, roomID); err != nil {
			return fmt.Errorf("leaving oversized room %s: %w", roomID, err)
		}
		b.logger.Info("left room", "room", roomID, "reason", decision.Reason)
	}
	return nil
}

// HandleMessage processes one inbound room message. The room's
// conversation lock is held for the entire handling, backend call
// included, so commands are fully visible to the next turn and two
// overlapping requests can never be built from inconsistent context.
func (b *Bot) HandleMessage(ctx context.Context, ev Event) error {
	if !b.gate.AccountAllowed(ev.Sender) {
		return nil
	}

	c := b.rooms.Get(ev.RoomID)
	c.Lock()
	defer c.Unlock()

	fields := strings.Fields(ev.Body)
	if len(fields) == 0 || fields[0] != b.prefix {
		// Unprefixed traffic: conversational in a direct room, observed
		// only (kept in history for future context) everywhere else.
		if !b.transport.IsDirect(ev.RoomID) {
			return nil
		}
		return b.converse(ctx, c, ev, ev.Body)
	}

	if len(fields) == 1 {
		// Bare prefix: respond using full context.
		return b.converse(ctx, c, ev, "")
	}

	sub := strings.ToLower(fields[1])
	args := fields[2:]
	switch sub {
	case "print":
		return b.cmdPrint(ctx, c, ev)
	case "send":
		return b.cmdSend(ctx, c, ev, args)
	case "model":
		return b.cmdModel(ctx, c, ev, args)
	case "backend":
		return b.cmdBackend(ctx, c, ev, args)
	case "role":
		return b.cmdRole(ctx, c, ev, args)
	case "list":
		return b.cmdList(ctx, c, ev)
	case "clear":
		return b.cmdClear(ctx, c, ev)
	case "rename":
		return b.cmdRename(ctx, c, ev)
	case "help":
		return b.transport.SendNotice(ctx, ev.RoomID, helpText(b.prefix))
	default:
		if len(fields) > 2 {
			// Prefixed free text is conversational input with the text
			// as the closing user turn.
			return b.converse(ctx, c, ev, strings.Join(fields[1:], " "))
		}
		return b.transport.SendNotice(ctx, ev.RoomID,
			fmt.Sprintf("Unknown command %q. Valid commands: %s", sub, strings.Join(subcommands, ", ")))
	}
}

// currentRole resolves the room's selected role, nil when it no longer
// exists in the catalog.
func (b *Bot) currentRole(c *room.Conversation) *role.Role {
	r, err := b.roles.Get(c.Role)
	if err != nil {
		return nil
	}
	return r
}

// history fetches the room transcript after the cursor, excluding the
// triggering event itself, which is carried as the closing turn instead.
func (b *Bot) history(ctx context.Context, c *room.Conversation, ev Event) ([]prompt.Entry, error) {
	entries, err := b.transport.History(ctx, ev.RoomID, c.Cursor)
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", ev.RoomID, err)
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != ev.EventID {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// admit runs per-message admission for a turn that is about to reach a
// backend and increments the sender's counter on success. Quota
// exhaustion notifies once in direct rooms and is silent elsewhere.
func (b *Bot) admit(ctx context.Context, c *room.Conversation, ev Event) bool {
	size, err := b.transport.JoinedMemberCount(ctx, ev.RoomID)
	if err != nil {
		b.logger.Warn("member count unavailable", "room", ev.RoomID, "error", err)
		size = 0
	}
	decision := b.gate.CheckMessage(ev.Sender, c.Count(ev.Sender), size)
	if !decision.Allowed {
		if decision.Reason == admission.ReasonQuotaExceeded &&
			b.transport.IsDirect(ev.RoomID) && !c.QuotaNotified(ev.Sender) {
			b.transport.SendNotice(ctx, ev.RoomID,
				fmt.Sprintf("You have reached the message limit of %d, sorry.", b.gate.MessageLimit()))
		}
		b.logger.Info("message denied", "room", ev.RoomID, "sender", ev.Sender, "reason", decision.Reason)
		return false
	}
	c.Increment(ev.Sender)
	b.rooms.Persist(ctx, c)
	return true
}

// selection resolves which backend and model serve this room: its own
// selection when set, the registry default otherwise.
func (b *Bot) selection(c *room.Conversation) (backend.Selection, error) {
	if c.BackendID != "" {
		if bk := b.backends.Get(c.BackendID); bk != nil {
			return backend.Selection{Backend: bk, Model: c.Model}, nil
		}
	}
	return b.backends.Default()
}

// invoke runs one completion and returns the reply text.
func (b *Bot) invoke(ctx context.Context, c *room.Conversation, sel backend.Selection, p *prompt.Prompt) (string, error) {
	requestID := uuid.NewString()
	b.logger.Info("invoking backend",
		"request_id", requestID, "room", c.ID, "backend", sel.Backend.ID, "model", sel.Model)

	text, err := sel.Backend.Invoke(ctx, sel.Model, p)
	if err != nil {
		b.logger.Error("backend invocation failed", "request_id", requestID, "error", err)
		return "", err
	}
	b.logger.Info("backend replied", "request_id", requestID, "chars", len(text))
	return text, nil
}

// converse handles a conversational turn: admission, context build,
// backend call, reply. closing is the sender's live text, empty for a
// bare prefix. A backend failure is reported into the room and never
// rolls back room state.
func (b *Bot) converse(ctx context.Context, c *room.Conversation, ev Event, closing string) error {
	if !b.admit(ctx, c, ev) {
		return nil
	}

	entries, err := b.history(ctx, c, ev)
	if err != nil {
		return err
	}
	p := b.builder.Build(b.currentRole(c), entries, closing)

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

func helpText(prefix string) string {
	return fmt.Sprintf(`Commands:
%[1]s - respond using the room conversation as context
%[1]s <message> - respond to the message with the conversation as context
%[1]s print - show the current conversation context, no backend call
%[1]s send <message> - send only <message> to the backend, ignoring history
%[1]s model <selector> - select the model for this room
%[1]s backend <name> <api_base> <api_key> - add an OpenAI-compatible backend
%[1]s role [name [prompt]] - show, select, or define a role
%[1]s list - list all known models
%[1]s clear - start a fresh conversation from this point
%[1]s rename - set the room name and topic from the conversation
%[1]s help - this text`, prefix)
}
