// ABOUTME: The rename command: derives room name and topic from the conversation
// ABOUTME: Uses short summary completions, honoring the chat_summary_model override

package bot

import (
	"context"
	"strings"

	"github.com/2389/chaz/internal/backend"
	"github.com/2389/chaz/internal/room"
)

const (
	titlePrompt = "In twenty characters or fewer, summarize this conversation as a room title. Reply with only the title."
	topicPrompt = "In fifty characters or fewer, summarize this conversation as a room topic. Reply with only the topic."

	maxTitleLen = 20
	maxTopicLen = 50
)

// cmdRename builds the room context and asks the backend for a short
// title and topic, then applies both to the room.
func (b *Bot) cmdRename(ctx context.Context, c *room.Conversation, ev Event) error {
	if !b.admit(ctx, c, ev) {
		return nil
	}

	sel, err := b.summarySelection(c)
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "No backend available: "+err.Error())
	}

	entries, err := b.history(ctx, c, ev)
	if err != nil {
		return err
	}
	r := b.currentRole(c)

	title, err := b.invoke(ctx, c, sel, b.builder.Build(r, entries, titlePrompt))
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Backend error: "+err.Error())
	}
	topic, err := b.invoke(ctx, c, sel, b.builder.Build(r, entries, topicPrompt))
	if err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Backend error: "+err.Error())
	}

	if err := b.transport.SetRoomName(ctx, ev.RoomID, cleanSummary(title, maxTitleLen)); err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Could not set room name: "+err.Error())
	}
	if err := b.transport.SetRoomTopic(ctx, ev.RoomID, cleanSummary(topic, maxTopicLen)); err != nil {
		return b.transport.SendNotice(ctx, ev.RoomID, "Could not set room topic: "+err.Error())
	}
	return nil
}

// summarySelection prefers the configured chat_summary_model over the
// room's own selection for rename completions.
func (b *Bot) summarySelection(c *room.Conversation) (backend.Selection, error) {
	if b.summaryModel != "" {
		if sel, err := b.backends.Resolve(b.summaryModel); err == nil {
			return sel, nil
		}
		b.logger.Warn("chat_summary_model did not resolve, using room selection", "selector", b.summaryModel)
	}
	return b.selection(c)
}

// cleanSummary normalizes a summary completion: models often wrap the
// answer in quotes or pad it with prose, so the first quoted span wins
// when present. The result is truncated to maxLen runes.
func cleanSummary(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	if start := strings.IndexByte(s, '"'); start >= 0 {
		if end := strings.IndexByte(s[start+1:], '"'); end >= 0 {
			s = s[start+1 : start+1+end]
		}
	}
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxLen {
		s = strings.TrimSpace(string(runes[:maxLen]))
	}
	return s
}
