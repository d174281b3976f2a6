// ABOUTME: Matrix implementation of the bot transport interface
// ABOUTME: Message sending, room metadata, membership, and history pagination

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/chaz/internal/markdown"
	"github.com/2389/chaz/internal/prompt"
)

const (
	historyPageSize  = 100
	maxHistoryEvents = 1000
)

// matrixTransport adapts a mautrix client to the bot's transport
// interface.
type matrixTransport struct {
	client *mautrix.Client
	userID id.UserID
	logger *slog.Logger

	mu           sync.Mutex
	displayNames map[id.UserID]string
	directRooms  map[id.RoomID]bool
}

func newMatrixTransport(client *mautrix.Client, userID id.UserID, logger *slog.Logger) *matrixTransport {
	return &matrixTransport{
		client:       client,
		userID:       userID,
		logger:       logger.With("component", "transport"),
		displayNames: make(map[id.UserID]string),
		directRooms:  make(map[id.RoomID]bool),
	}
}

func (t *matrixTransport) SendText(ctx context.Context, roomID, text string) error {
	_, err := t.client.SendText(ctx, id.RoomID(roomID), text)
	return err
}

func (t *matrixTransport) SendMarkdown(ctx context.Context, roomID, text string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if !markdown.IsPlain(text) {
		content.Format = event.FormatHTML
		content.FormattedBody = markdown.Render(text)
	}
	_, err := t.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
	return err
}

func (t *matrixTransport) SendNotice(ctx context.Context, roomID, text string) error {
	_, err := t.client.SendNotice(ctx, id.RoomID(roomID), text)
	return err
}

func (t *matrixTransport) SetRoomName(ctx context.Context, roomID, name string) error {
	_, err := t.client.SendStateEvent(ctx, id.RoomID(roomID), event.StateRoomName, "",
		&event.RoomNameEventContent{Name: name})
	return err
}

func (t *matrixTransport) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	_, err := t.client.SendStateEvent(ctx, id.RoomID(roomID), event.StateTopic, "",
		&event.TopicEventContent{Topic: topic})
	return err
}

func (t *matrixTransport) JoinRoom(ctx context.Context, roomID string) error {
	_, err := t.client.JoinRoomByID(ctx, id.RoomID(roomID))
	return err
}

func (t *matrixTransport) LeaveRoom(ctx context.Context, roomID string) error {
	_, err := t.client.LeaveRoom(ctx, id.RoomID(roomID))
	return err
}

func (t *matrixTransport) JoinedMemberCount(ctx context.Context, roomID string) (int, error) {
	resp, err := t.client.JoinedMembers(ctx, id.RoomID(roomID))
	if err != nil {
		return 0, fmt.Errorf("fetching members of %s: %w", roomID, err)
	}

	t.mu.Lock()
	t.directRooms[id.RoomID(roomID)] = len(resp.Joined) == 2
	t.mu.Unlock()

	return len(resp.Joined), nil
}

// IsDirect treats any two-member room as a direct conversation. The
// answer is cached from the last membership fetch.
func (t *matrixTransport) IsDirect(roomID string) bool {
	t.mu.Lock()
	direct, known := t.directRooms[id.RoomID(roomID)]
	t.mu.Unlock()
	if known {
		return direct
	}

	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	count, err := t.JoinedMemberCount(ctx, roomID)
	if err != nil {
		t.logger.Warn("direct-room check failed", "room", roomID, "error", err)
		return false
	}
	return count == 2
}

// History returns human-visible messages strictly after afterEventID in
// chronological order. It pages backwards from the present and stops as
// soon as the cursor event is reached.
func (t *matrixTransport) History(ctx context.Context, roomID, afterEventID string) ([]prompt.Entry, error) {
	var collected []prompt.Entry
	from := ""

	for len(collected) < maxHistoryEvents {
		resp, err := t.client.Messages(ctx, id.RoomID(roomID), from, "", mautrix.DirectionBackward, nil, historyPageSize)
		if err != nil {
			return nil, fmt.Errorf("paginating %s: %w", roomID, err)
		}
		if len(resp.Chunk) == 0 {
			break
		}

		hitCursor := false
		for _, evt := range resp.Chunk {
			if afterEventID != "" && evt.ID.String() == afterEventID {
				hitCursor = true
				break
			}
			if entry, ok := t.toEntry(ctx, evt); ok {
				collected = append(collected, entry)
			}
		}
		if hitCursor || resp.End == "" {
			break
		}
		from = resp.End
	}

	// Backward pagination yields newest first; flip to chronological.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// toEntry converts a room event into a transcript entry. Non-message
// events and redacted or empty messages are skipped.
func (t *matrixTransport) toEntry(ctx context.Context, evt *event.Event) (prompt.Entry, bool) {
	if evt.Type != event.EventMessage {
		return prompt.Entry{}, false
	}
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(event.EventMessage); err != nil {
			return prompt.Entry{}, false
		}
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return prompt.Entry{}, false
	}

	entry := prompt.Entry{
		ID:      evt.ID.String(),
		Sender:  evt.Sender.String(),
		Speaker: t.displayName(ctx, evt.Sender),
		FromBot: evt.Sender == t.userID,
	}

	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		entry.Text = content.Body
	case event.MsgImage, event.MsgAudio, event.MsgVideo, event.MsgFile:
		entry.MediaRefs = []string{content.Body}
	default:
		return prompt.Entry{}, false
	}

	if entry.Text == "" && len(entry.MediaRefs) == 0 {
		return prompt.Entry{}, false
	}
	return entry, true
}

// displayName resolves a user's display name, falling back to the
// localpart. Lookups are cached for the process lifetime.
func (t *matrixTransport) displayName(ctx context.Context, userID id.UserID) string {
	t.mu.Lock()
	if name, ok := t.displayNames[userID]; ok {
		t.mu.Unlock()
		return name
	}
	t.mu.Unlock()

	name := localpart(userID)
	if resp, err := t.client.GetDisplayName(ctx, userID); err == nil && resp.DisplayName != "" {
		name = resp.DisplayName
	}

	t.mu.Lock()
	t.displayNames[userID] = name
	t.mu.Unlock()
	return name
}

// localpart extracts the local part of a Matrix user ID.
// Example: @alice:example.org -> alice
func localpart(userID id.UserID) string {
	s := strings.TrimPrefix(userID.String(), "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
