// ABOUTME: Tests for the command and response dispatch layer
// ABOUTME: Uses a mock transport and scripted invoker, no homeserver required

package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chaz/internal/admission"
	"github.com/2389/chaz/internal/backend"
	"github.com/2389/chaz/internal/config"
	"github.com/2389/chaz/internal/prompt"
	"github.com/2389/chaz/internal/role"
	"github.com/2389/chaz/internal/room"
)

// fakeInvoker records every prompt it receives and returns scripted
// replies.
type fakeInvoker struct {
	mu      sync.Mutex
	prompts []*prompt.Prompt
	models  []string
	replies []string
	err     error
}

func (f *fakeInvoker) Invoke(_ context.Context, model string, p *prompt.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	f.models = append(f.models, model)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "ok", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeInvoker) lastPrompt() *prompt.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

// mockTransport implements Transport in memory.
type mockTransport struct {
	direct  bool
	members int
	entries []prompt.Entry

	historyAfter []string
	texts        []string
	markdowns    []string
	notices      []string
	joined       []string
	left         []string
	roomName     string
	roomTopic    string
}

func (m *mockTransport) SendText(_ context.Context, _ string, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) SendMarkdown(_ context.Context, _ string, text string) error {
	m.markdowns = append(m.markdowns, text)
	return nil
}

func (m *mockTransport) SendNotice(_ context.Context, _ string, text string) error {
	m.notices = append(m.notices, text)
	return nil
}

func (m *mockTransport) SetRoomName(_ context.Context, _ string, name string) error {
	m.roomName = name
	return nil
}

func (m *mockTransport) SetRoomTopic(_ context.Context, _ string, topic string) error {
	m.roomTopic = topic
	return nil
}

func (m *mockTransport) JoinRoom(_ context.Context, roomID string) error {
	m.joined = append(m.joined, roomID)
	return nil
}

func (m *mockTransport) LeaveRoom(_ context.Context, roomID string) error {
	m.left = append(m.left, roomID)
	return nil
}

func (m *mockTransport) JoinedMemberCount(_ context.Context, _ string) (int, error) {
	if m.members == 0 {
		return 2, nil
	}
	return m.members, nil
}

func (m *mockTransport) IsDirect(string) bool { return m.direct }

func (m *mockTransport) History(_ context.Context, _ string, afterEventID string) ([]prompt.Entry, error) {
	m.historyAfter = append(m.historyAfter, afterEventID)
	if afterEventID == "" {
		return append([]prompt.Entry(nil), m.entries...), nil
	}
	for i, e := range m.entries {
		if e.ID == afterEventID {
			return append([]prompt.Entry(nil), m.entries[i+1:]...), nil
		}
	}
	return append([]prompt.Entry(nil), m.entries...), nil
}

func newTestBot(t *testing.T, tr *mockTransport, limits config.LimitsConfig, chat config.ChatConfig) (*Bot, *fakeInvoker) {
	t.Helper()
	if limits.AllowList == "" {
		limits.AllowList = `@.*:example\.org`
	}

	gate, err := admission.New(limits, nil)
	require.NoError(t, err)

	reg, err := backend.NewRegistry(nil, nil)
	require.NoError(t, err)
	inv := &fakeInvoker{}
	require.NoError(t, reg.Add(backend.New("openai", backend.KindOpenAI, []string{"m1", "m2"}, inv)))

	roles := role.NewCatalog(nil, nil)
	rooms := room.NewManager("chaz", nil, nil)

	return New(tr, gate, rooms, reg, roles, chat, nil), inv
}

func say(roomID, eventID, sender, body string) Event {
	return Event{RoomID: roomID, EventID: eventID, Sender: sender, Body: body}
}

const (
	testRoom = "!room:example.org"
	alice    = "@alice:example.org"
	intruder = "@mallory:evil.net"
)

func TestDirectRoom_TwoTurnConversation(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	tr.entries = []prompt.Entry{{ID: "$1", Sender: alice, Speaker: "alice", Text: "hello"}}
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "hello")))

	tr.entries = append(tr.entries, prompt.Entry{ID: "$2", Sender: alice, Speaker: "alice", Text: "how are you"})
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "how are you")))

	require.Equal(t, 2, inv.calls())
	p := inv.lastPrompt()
	require.Len(t, p.Turns, 2)
	assert.Equal(t, "alice: hello", p.Turns[0].Content())
	assert.Equal(t, "how are you", p.Turns[1].Content())
	assert.Equal(t, prompt.TurnUser, p.Turns[1].Role)
	assert.Len(t, tr.markdowns, 2)
}

func TestMultiPartyRoom_PrefixGating(t *testing.T) {
	tr := &mockTransport{direct: false}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	// Unprefixed traffic is observed but never answered.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "hello")))
	assert.Equal(t, 0, inv.calls())
	assert.Empty(t, tr.markdowns)

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "hello"},
		{ID: "$2", Sender: alice, Speaker: "alice", Text: "!chaz explain that"},
	}
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz explain that")))

	require.Equal(t, 1, inv.calls())
	p := inv.lastPrompt()
	last := p.Turns[len(p.Turns)-1]
	assert.Equal(t, prompt.TurnUser, last.Role)
	assert.Equal(t, "explain that", last.Text)
}

func TestBarePrefix_RespondsWithFullContext(t *testing.T) {
	tr := &mockTransport{direct: false}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "what is a monad"},
		{ID: "$2", Sender: alice, Speaker: "alice", Text: "!chaz"},
	}
	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$2", alice, "!chaz")))

	require.Equal(t, 1, inv.calls())
	p := inv.lastPrompt()
	require.Len(t, p.Turns, 1)
	assert.Equal(t, "alice: what is a monad", p.Turns[0].Content())
}

func TestDisallowedSender_Ignored(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$1", intruder, "hello")))
	assert.Equal(t, 0, inv.calls())
	assert.Empty(t, tr.notices)
}

func TestQuota_LimitTwoWithCommandExemptions(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{MessageLimit: 2}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "one")))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "two")))
	assert.Equal(t, 2, inv.calls())

	// Third conversational turn is denied, with a single notice in a DM.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$3", alice, "three")))
	assert.Equal(t, 2, inv.calls())
	require.Len(t, tr.notices, 1)
	assert.Contains(t, tr.notices[0], "message limit")

	// Denial is silent from then on.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$4", alice, "four")))
	assert.Len(t, tr.notices, 1)

	// Quota-exempt commands keep working.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$5", alice, "!chaz list")))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$6", alice, "!chaz help")))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$7", alice, "!chaz print")))
	assert.Equal(t, 2, inv.calls())
	assert.NotEmpty(t, tr.texts)
}

func TestClear_ExcludesEarlierHistory(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "old business"},
		{ID: "$2", Sender: alice, Speaker: "alice", Text: "!chaz clear"},
		{ID: "$3", Sender: alice, Speaker: "alice", Text: "new business"},
	}

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz clear")))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$3", alice, "new business")))

	require.Equal(t, 1, inv.calls())
	assert.Equal(t, "$2", tr.historyAfter[len(tr.historyAfter)-1])
	p := inv.lastPrompt()
	for _, turn := range p.Turns {
		assert.NotContains(t, turn.Text, "old business")
	}
}

func TestClear_CursorOnlyAdvances(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$5", alice, "!chaz clear")))
	c := b.rooms.Get(testRoom)
	assert.Equal(t, "$5", c.Cursor)

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$9", alice, "!chaz clear")))
	assert.Equal(t, "$9", c.Cursor)
}

func TestPrint_NoBackendCall(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "hello"},
	}
	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$2", alice, "!chaz print")))

	assert.Equal(t, 0, inv.calls())
	require.Len(t, tr.texts, 1)
	assert.Contains(t, tr.texts[0], "USER: alice: hello")
	assert.True(t, strings.HasSuffix(tr.texts[0], "ASSISTANT: "))
}

func TestSend_BypassesHistory(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "unrelated history"},
	}
	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$2", alice, "!chaz send just this")))

	require.Equal(t, 1, inv.calls())
	p := inv.lastPrompt()
	require.Len(t, p.Turns, 1)
	assert.Equal(t, "just this", p.Turns[0].Text)
}

func TestModel_SetAndReject(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "!chaz model m2")))
	c := b.rooms.Get(testRoom)
	assert.Equal(t, "openai", c.BackendID)
	assert.Equal(t, "m2", c.Model)

	// Unresolvable selector reports without mutating the selection.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz model nope")))
	assert.Equal(t, "m2", c.Model)
	assert.Contains(t, tr.notices[len(tr.notices)-1], "Unknown model")

	// The selected model is what reaches the backend.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$3", alice, "hi")))
	assert.Equal(t, "m2", inv.models[len(inv.models)-1])
}

func TestBackend_CollisionKeepsFirst(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "!chaz backend b1 https://x/v1 KEY")))
	assert.Contains(t, tr.notices[len(tr.notices)-1], "registered")
	require.NotNil(t, b.backends.Get("b1"))

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz backend b1 https://y/v1 KEY2")))
	assert.Contains(t, tr.notices[len(tr.notices)-1], "already exists")
	assert.Equal(t, 2, b.backends.Len())
}

func TestRole_UpsertAndReport(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, `!chaz role newrole "You are terse."`)))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz role")))
	assert.Contains(t, tr.notices[len(tr.notices)-1], "newrole")
	assert.Contains(t, tr.notices[len(tr.notices)-1], "You are terse.")

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$3", alice, `!chaz role newrole "Say less."`)))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$4", alice, "!chaz role")))
	assert.Contains(t, tr.notices[len(tr.notices)-1], "Say less.")
	assert.NotContains(t, tr.notices[len(tr.notices)-1], "You are terse.")
}

func TestRole_UnknownName(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$1", alice, "!chaz role nosuchrole")))
	assert.Contains(t, tr.notices[len(tr.notices)-1], "Unknown role")

	c := b.rooms.Get(testRoom)
	assert.Equal(t, "chaz", c.Role)
}

func TestRole_SelectExisting(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "!chaz role bash")))
	c := b.rooms.Get(testRoom)
	assert.Equal(t, "bash", c.Role)

	// The selected role's prompt is applied on the next turn.
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "list files")))
	assert.Contains(t, inv.lastPrompt().System, "Bash shell command")
}

func TestUnknownCommand_Reported(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$1", alice, "!chaz frobnicate")))
	assert.Equal(t, 0, inv.calls())
	require.NotEmpty(t, tr.notices)
	assert.Contains(t, tr.notices[0], "Unknown command")
	assert.Contains(t, tr.notices[0], "clear")
}

func TestList_ModelsUnprefixedWithSingleBackend(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$1", alice, "!chaz list")))
	require.Len(t, tr.texts, 1)
	assert.Contains(t, tr.texts[0], "m1")
	assert.Contains(t, tr.texts[0], "m2")
	assert.NotContains(t, tr.texts[0], "openai:")
}

func TestBackendError_SurfacedWithoutRollback(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	inv.err = errors.New("connection refused")

	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$1", alice, "hello")))

	require.NotEmpty(t, tr.notices)
	assert.Contains(t, tr.notices[0], "Backend error")
	assert.Contains(t, tr.notices[0], "connection refused")
	assert.Empty(t, tr.markdowns)

	// The turn still consumed quota; errors never roll back state.
	c := b.rooms.Get(testRoom)
	assert.Equal(t, uint64(1), c.Count(alice))
}

func TestRename_SetsNameAndTopic(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})
	inv.replies = []string{`Sure! The title is "Go Questions"`, "Helping alice learn Go"}

	tr.entries = []prompt.Entry{
		{ID: "$1", Sender: alice, Speaker: "alice", Text: "tell me about Go"},
	}
	require.NoError(t, b.HandleMessage(context.Background(), say(testRoom, "$2", alice, "!chaz rename")))

	assert.Equal(t, 2, inv.calls())
	assert.Equal(t, "Go Questions", tr.roomName)
	assert.Equal(t, "Helping alice learn Go", tr.roomTopic)
}

func TestRename_UsesSummaryModelOverride(t *testing.T) {
	tr := &mockTransport{direct: true}
	b, inv := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{ChatSummaryModel: "m1"})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "!chaz model m2")))
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz rename")))

	require.NotEmpty(t, inv.models)
	assert.Equal(t, "m1", inv.models[len(inv.models)-1])
}

func TestInvite_AllowedJoins(t *testing.T) {
	tr := &mockTransport{direct: false}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleInvite(context.Background(), testRoom, alice))
	assert.Equal(t, []string{testRoom}, tr.joined)
	assert.Empty(t, tr.left)
}

func TestInvite_DisallowedIgnored(t *testing.T) {
	tr := &mockTransport{direct: false}
	b, _ := newTestBot(t, tr, config.LimitsConfig{}, config.ChatConfig{})

	require.NoError(t, b.HandleInvite(context.Background(), testRoom, intruder))
	assert.Empty(t, tr.joined)
}

func TestInvite_OversizedRoomLeft(t *testing.T) {
	tr := &mockTransport{direct: false, members: 50}
	b, _ := newTestBot(t, tr, config.LimitsConfig{RoomSizeLimit: 10}, config.ChatConfig{})

	require.NoError(t, b.HandleInvite(context.Background(), testRoom, alice))
	assert.Equal(t, []string{testRoom}, tr.joined)
	assert.Equal(t, []string{testRoom}, tr.left)
}

func TestRoomSizeLimit_RecheckedPerMessage(t *testing.T) {
	tr := &mockTransport{direct: false, members: 3}
	b, inv := newTestBot(t, tr, config.LimitsConfig{RoomSizeLimit: 5}, config.ChatConfig{})
	ctx := context.Background()

	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$1", alice, "!chaz hello there")))
	assert.Equal(t, 1, inv.calls())

	// Membership grew past the ceiling after join.
	tr.members = 8
	require.NoError(t, b.HandleMessage(ctx, say(testRoom, "$2", alice, "!chaz hello again")))
	assert.Equal(t, 1, inv.calls())
}

func TestCleanSummary(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{`"Go Questions"`, 20, "Go Questions"},
		{`The title is "Go Questions", hope that helps!`, 20, "Go Questions"},
		{"Plain Title", 20, "Plain Title"},
		{"  padded  ", 20, "padded"},
		{"This title is much too long to keep", 10, "This title"},
		{"", 20, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanSummary(tt.in, tt.maxLen), "input %q", tt.in)
	}
}
