// ABOUTME: Transport interface consumed by the bot layer
// ABOUTME: Abstracts the Matrix client so orchestration is testable offline

package bot

import (
	"context"

	"github.com/2389/chaz/internal/prompt"
)

// Event is one inbound room message, tagged with its room, sender, and
// ordering position.
type Event struct {
	RoomID  string
	EventID string
	Sender  string
	Body    string
}

// Transport is the protocol surface the bot consumes. The Matrix client
// implements it in production; tests supply a mock.
type Transport interface {
	// SendText sends a plain text message into a room.
	SendText(ctx context.Context, roomID, text string) error

	// SendMarkdown sends a message with a rendered HTML body alongside
	// the plain text.
	SendMarkdown(ctx context.Context, roomID, text string) error

	// SendNotice sends a notice, the conventional form for bot status
	// and error reporting.
	SendNotice(ctx context.Context, roomID, text string) error

	// SetRoomName and SetRoomTopic update room display metadata.
	SetRoomName(ctx context.Context, roomID, name string) error
	SetRoomTopic(ctx context.Context, roomID, topic string) error

	// JoinRoom accepts an invite; LeaveRoom abandons a room.
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error

	// JoinedMemberCount returns the current room membership count.
	JoinedMemberCount(ctx context.Context, roomID string) (int, error)

	// IsDirect reports whether the room is a two-party conversation.
	IsDirect(roomID string) bool

	// History returns the room's human-visible messages strictly after
	// afterEventID (or from the room start when empty), oldest first.
	History(ctx context.Context, roomID, afterEventID string) ([]prompt.Entry, error)
}
